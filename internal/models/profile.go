package models

import "time"

// Profile is the user document kept in the profile store.
type Profile struct {
	UID             string           `json:"uid"`
	Email           string           `json:"email"`
	DisplayName     string           `json:"displayName"`
	PhotoURL        string           `json:"photoURL"`
	EduviaCoins     int64            `json:"eduviaCoins"`
	IsPremium       bool             `json:"isPremium"`
	SetupCompleted  bool             `json:"setupCompleted"`
	AcademicProfile *AcademicProfile `json:"academicProfile,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

// AcademicProfile is filled in during account setup.
type AcademicProfile struct {
	University   string   `json:"university"`
	FieldOfStudy string   `json:"fieldOfStudy"`
	Degree       string   `json:"degree,omitempty"`
	Interests    []string `json:"interests,omitempty"`
}
