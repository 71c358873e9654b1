package requests

// RateRequest is a rate lookup. At least one of State or Zip is required.
type RateRequest struct {
	State  string `form:"state" json:"state,omitempty" binding:"omitempty,max=32"`
	City   string `form:"city" json:"city,omitempty" binding:"omitempty,max=200"`
	County string `form:"county" json:"county,omitempty" binding:"omitempty,max=100"`
	Zip    string `form:"zip" json:"zip,omitempty" binding:"omitempty,max=10"`
}
