package models

// Couple two-user entity every signal and intervention is scoped to
type Couple struct {
	CoupleID   string  `json:"couple_id" db:"couple_id"`
	PartnerAID *string `json:"partner_a_id,omitempty" db:"partner_a_id"`
	PartnerBID *string `json:"partner_b_id,omitempty" db:"partner_b_id"`
	Status     string  `json:"status" db:"status"`
}

// PartnerIDs linked partner ids, skipping unlinked slots
func (c *Couple) PartnerIDs() []string {
	ids := make([]string, 0, 2)
	if c.PartnerAID != nil && *c.PartnerAID != "" {
		ids = append(ids, *c.PartnerAID)
	}
	if c.PartnerBID != nil && *c.PartnerBID != "" {
		ids = append(ids, *c.PartnerBID)
	}
	return ids
}

// CrisisHotline entry of the read-only hotline directory
type CrisisHotline struct {
	HotlineID    string `json:"hotline_id" db:"hotline_id"`
	Country      string `json:"country" db:"country"`
	Name         string `json:"name" db:"name"`
	Phone        string `json:"phone" db:"phone"`
	HotlineType  string `json:"hotline_type" db:"hotline_type"`
	Available247 bool   `json:"available_24_7" db:"available_24_7"`
}
