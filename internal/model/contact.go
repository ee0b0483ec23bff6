package model

import "time"

type Situation string

const (
	Active    Situation = "Ativo"
	Inactive  Situation = "Inativo"
	Suspended Situation = "Suspenso"
)

type Contact struct {
	ID                 int64
	TenantID           int64
	Name               string
	Number             string
	Email              string
	Channel            string
	CpfCnpj            string
	RepresentativeCode string
	City               string
	Instagram          string
	Situation          Situation
	FantasyName        string
	FoundationDate     *time.Time
	CreditLimit        string
	TagIDs             []int64
}

type Tag struct {
	ID       int64
	TenantID int64
	Name     string
	Color    string
}

// ContactTag is one row of the contact/tag association.
type ContactTag struct {
	ContactID int64
	TagID     int64
}
