package preference

// SaveRequest represents the input for saving a column preference.
type SaveRequest struct {
	Hidden []string `json:"hidden" form:"hidden" binding:"omitempty,dive,max=100"`
	Order  []string `json:"order" form:"order" binding:"omitempty,dive,max=100"`
}
