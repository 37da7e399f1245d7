package schema

// Category is the routing category assigned to a user message.
type Category string

const (
	CategoryStock     Category = "stock"
	CategoryWork      Category = "work"
	CategoryKnowledge Category = "knowledge"
	CategorySchedule  Category = "schedule"
	CategoryUnknown   Category = "unknown"
)

// Valid reports whether c is one of the defined categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryStock, CategoryWork, CategoryKnowledge, CategorySchedule, CategoryUnknown:
		return true
	}
	return false
}

// ClassificationResult is produced once per user turn by the router.
// Mission is a self-contained instruction for the target agent; it must fully
// capture the user's intent because the agent never sees the raw message.
// Mission is non-empty whenever Category is not CategoryUnknown.
type ClassificationResult struct {
	Category   Category `json:"category"`
	Confidence float64  `json:"confidence"`
	Reason     string   `json:"reason"`
	Mission    string   `json:"mission"`
}
