package domain

import (
	"bytes"
	"encoding/json"
)

type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// Member is a room participant identified by login. Display fields are
// optional.
type Member struct {
	Login       string `json:"login"`
	DisplayName string `json:"display_name,omitempty"`
	Avatar      string `json:"avatar,omitempty"`
	Role        Role   `json:"role"`
}

// UnmarshalJSON accepts both the object form and the legacy bare-login
// string form.
func (m *Member) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var login string
		if err := json.Unmarshal(data, &login); err != nil {
			return err
		}
		*m = Member{Login: NormalizeLogin(login), Role: RoleMember}
		return nil
	}

	type plain Member
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	p.Login = NormalizeLogin(p.Login)
	if p.Role == "" {
		p.Role = RoleMember
	}
	*m = Member(p)
	return nil
}

// CanManage reports whether the member may change room settings or
// membership.
func (m Member) CanManage() bool {
	return m.Role == RoleOwner || m.Role == RoleAdmin
}

// MemberList is the ordered member document of a room. A login appears at
// most once.
type MemberList []Member

func (l MemberList) Find(login string) (Member, bool) {
	login = NormalizeLogin(login)
	for _, m := range l {
		if m.Login == login {
			return m, true
		}
	}
	return Member{}, false
}

func (l MemberList) Contains(login string) bool {
	_, ok := l.Find(login)
	return ok
}

// Add appends m unless its login is already present. The second return value
// is false when the list was left unchanged.
func (l MemberList) Add(m Member) (MemberList, bool) {
	m.Login = NormalizeLogin(m.Login)
	if m.Login == "" || l.Contains(m.Login) {
		return l, false
	}
	if m.Role == "" {
		m.Role = RoleMember
	}
	return append(l, m), true
}

// Remove drops login while keeping the order of the remaining members.
func (l MemberList) Remove(login string) (MemberList, bool) {
	login = NormalizeLogin(login)
	for i, m := range l {
		if m.Login == login {
			out := make(MemberList, 0, len(l)-1)
			out = append(out, l[:i]...)
			return append(out, l[i+1:]...), true
		}
	}
	return l, false
}
