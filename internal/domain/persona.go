// Package domain contains core domain types for the persona interview backend.
package domain

import (
	"time"
)

// Persona is a named character profile owned by one user.
type Persona struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	Characteristics []string  `json:"characteristics"`
	UserID          string    `json:"userId"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// OwnerID returns the user that owns the persona.
func (p *Persona) OwnerID() string {
	return p.UserID
}

// PersonaUpdate carries the fields of a partial persona update.
// Nil fields are left unchanged.
type PersonaUpdate struct {
	Name            *string
	Description     *string
	Characteristics *[]string
}

// IsEmpty returns true if the update changes nothing.
func (u PersonaUpdate) IsEmpty() bool {
	return u.Name == nil && u.Description == nil && u.Characteristics == nil
}

// Apply merges the update into p and refreshes UpdatedAt.
func (u PersonaUpdate) Apply(p *Persona, now time.Time) {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Description != nil {
		p.Description = *u.Description
	}
	if u.Characteristics != nil {
		p.Characteristics = append([]string{}, (*u.Characteristics)...)
	}
	p.UpdatedAt = now
}
