package transfer

// BackfillReport summarises a legacy credential migration.
type BackfillReport struct {
	Found    int `json:"found"`
	Migrated int `json:"migrated"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}
