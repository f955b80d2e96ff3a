package verify

import (
	"encoding/json"
	"strings"
)

type whoamiPayload struct {
	Name     string            `json:"name"`
	Fullname string            `json:"fullname"`
	Email    string            `json:"email"`
	Type     string            `json:"type"`
	Orgs     []json.RawMessage `json:"orgs"`
}

// parseIdentity extracts whatever identity fields are present. Malformed
// bodies yield an empty identity rather than an error: the token was accepted.
func parseIdentity(body []byte) *Identity {
	id := &Identity{Orgs: []string{}}

	var p whoamiPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return id
	}

	id.Name = p.Name
	id.Fullname = p.Fullname
	id.Email = p.Email
	id.Type = p.Type

	for _, raw := range p.Orgs {
		if name := orgName(raw); name != "" {
			id.Orgs = append(id.Orgs, name)
		}
	}
	return id
}

// orgName accepts either a bare string or an object with a name field.
func orgName(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var obj struct {
		Name     string `json:"name"`
		Fullname string `json:"fullname"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if obj.Name != "" {
			return obj.Name
		}
		return obj.Fullname
	}
	return ""
}
