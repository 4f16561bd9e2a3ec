package domain

// UserRecord is the signed-in student as the UI sees it.
type UserRecord struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	StudentID string `json:"student_id"`
}

// FullName joins first and last name.
func (u UserRecord) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// DisplayName is the navbar label for the user.
func (u UserRecord) DisplayName() string {
	if u.FirstName == "" {
		return "User"
	}
	return u.FirstName
}

// RegistrationProfile is the register form payload.
type RegistrationProfile struct {
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	StudentID       string `json:"student_id"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// User builds the record that a successful registration produces.
func (p RegistrationProfile) User(id string) UserRecord {
	return UserRecord{
		ID:        id,
		Email:     p.Email,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		StudentID: p.StudentID,
	}
}

// Profile is a row of the profiles table.
type Profile struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	StudentID string `json:"student_id"`
	FullName  string `json:"full_name"`
}

// ProfileFor derives the profiles row for a user.
func ProfileFor(u UserRecord) Profile {
	return Profile{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		StudentID: u.StudentID,
		FullName:  u.FullName(),
	}
}
