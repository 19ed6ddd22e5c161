package model

type CredentialState string

const (
	NoValidCredentials  CredentialState = "no_valid_credentials"
	HasValidCredentials CredentialState = "has_valid_credentials"
)

// Credentials are opaque to the bot; only the portal decides whether they are valid.
type Credentials struct {
	BearerToken  string
	CookieHeader string
}

func (c Credentials) Complete() bool {
	return c.BearerToken != "" && c.CookieHeader != ""
}

type StatusReport struct {
	Model         string
	SerialNumber  string
	CycleStart    string
	CycleEnd      string
	PlanPages     string
	RolloverPages string
	PrintedPages  string
}
