package models

// UserView is the read-only projection of a User exposed to clients.
type UserView struct {
	IsSuperuser bool   `json:"is_superuser"`
	Username    string `json:"username"`
	Email       string `json:"email"`
}

func (user *User) View() UserView {
	return UserView{
		IsSuperuser: user.IsSuperuser,
		Username:    user.Username,
		Email:       user.Email,
	}
}
