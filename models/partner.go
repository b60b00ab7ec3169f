// ABOUTME: Partner platform entities as stored in the partner KV store
// ABOUTME: Field names follow the partner's schema, not the CRM's
package models

import "time"

// Client is the partner platform's equivalent of a Contact.
type Client struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Location  string    `json:"location,omitempty"`
	Status    string    `json:"status,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

type PartnerProject struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Summary   string     `json:"summary,omitempty"`
	ClientID  *string    `json:"client_id"`
	State     string     `json:"state,omitempty"`
	StartsOn  *time.Time `json:"starts_on"`
	EndsOn    *time.Time `json:"ends_on"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type PartnerCase struct {
	ID        string    `json:"id"`
	Subject   string    `json:"subject"`
	ClientID  *string   `json:"client_id"`
	State     string    `json:"state,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

type PartnerTask struct {
	ID        string     `json:"id"`
	Summary   string     `json:"summary"`
	ProjectID *string    `json:"project_id"`
	OwnerID   string     `json:"owner_id,omitempty"`
	State     string     `json:"state,omitempty"`
	DueOn     *time.Time `json:"due_on"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type PartnerActivity struct {
	ID         string     `json:"id"`
	Kind       string     `json:"kind"`
	Title      string     `json:"title"`
	ProjectID  *string    `json:"project_id"`
	ClientID   *string    `json:"client_id"`
	CaseID     *string    `json:"case_id"`
	OccurredOn *time.Time `json:"occurred_on"`
	State      string     `json:"state,omitempty"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (c *Client) RecordID() string          { return c.ID }
func (c *Client) Entity() EntityType        { return EntityContact }
func (c *Client) ForeignKeys() []ForeignKey { return nil }

func (p *PartnerProject) RecordID() string   { return p.ID }
func (p *PartnerProject) Entity() EntityType { return EntityProject }
func (p *PartnerProject) ForeignKeys() []ForeignKey {
	return []ForeignKey{{Field: "client_id", Target: EntityContact, Ref: &p.ClientID}}
}

func (c *PartnerCase) RecordID() string   { return c.ID }
func (c *PartnerCase) Entity() EntityType { return EntityCase }
func (c *PartnerCase) ForeignKeys() []ForeignKey {
	return []ForeignKey{{Field: "client_id", Target: EntityContact, Ref: &c.ClientID}}
}

func (t *PartnerTask) RecordID() string   { return t.ID }
func (t *PartnerTask) Entity() EntityType { return EntityTask }
func (t *PartnerTask) ForeignKeys() []ForeignKey {
	return []ForeignKey{{Field: "project_id", Target: EntityProject, Ref: &t.ProjectID}}
}

func (a *PartnerActivity) RecordID() string   { return a.ID }
func (a *PartnerActivity) Entity() EntityType { return EntityActivity }
func (a *PartnerActivity) ForeignKeys() []ForeignKey {
	return []ForeignKey{
		{Field: "project_id", Target: EntityProject, Ref: &a.ProjectID},
		{Field: "client_id", Target: EntityContact, Ref: &a.ClientID},
		{Field: "case_id", Target: EntityCase, Ref: &a.CaseID},
	}
}

// NewRecord returns an empty record of the given entity in the given side's schema.
// Used by connectors to decode stored rows.
func NewRecord(side Side, entity EntityType) Record {
	if side == SidePartner {
		switch entity {
		case EntityContact:
			return &Client{}
		case EntityProject:
			return &PartnerProject{}
		case EntityCase:
			return &PartnerCase{}
		case EntityTask:
			return &PartnerTask{}
		case EntityActivity:
			return &PartnerActivity{}
		}
		return nil
	}
	switch entity {
	case EntityContact:
		return &Contact{}
	case EntityProject:
		return &Project{}
	case EntityCase:
		return &Case{}
	case EntityTask:
		return &Task{}
	case EntityActivity:
		return &Activity{}
	}
	return nil
}
