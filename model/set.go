package model

import "errors"

// Role ist die Rolle eines Modells innerhalb eines Laufs.
type Role string

const (
	RoleNoise      Role = "noise"
	RoleScale      Role = "scale"
	RoleNoiseScale Role = "noise_scale"
	RoleAlpha      Role = "alpha"
)

// roleOrder ist die feste Reihenfolge fuer Roles und Close.
var roleOrder = []Role{RoleNoiseScale, RoleAlpha, RoleNoise, RoleScale}

// Set bildet Rollen auf hoechstens ein geladenes Modell ab.
// Ein Set wird waehrend eines Laufs nicht veraendert.
type Set map[Role]Model

// Get gibt das Modell der Rolle zurueck.
func (s Set) Get(r Role) (Model, bool) {
	m, ok := s[r]
	return m, ok && m != nil
}

// Has meldet ob die Rolle besetzt ist.
func (s Set) Has(r Role) bool {
	_, ok := s.Get(r)
	return ok
}

// Roles gibt die besetzten Rollen in fester Reihenfolge zurueck.
func (s Set) Roles() []Role {
	var roles []Role
	for _, r := range roleOrder {
		if s.Has(r) {
			roles = append(roles, r)
		}
	}
	return roles
}

// Close schliesst alle Modelle und sammelt die Fehler.
func (s Set) Close() error {
	var errs []error
	for _, r := range s.Roles() {
		if err := s[r].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
