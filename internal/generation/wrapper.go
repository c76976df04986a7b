package generation

// Wrapper exposes a Client under a Models field, for callers written
// against provider SDKs shaped as client.Models.GenerateContent(...).
type Wrapper struct {
	Models *Client
}

func NewWrapper(c *Client) *Wrapper { return &Wrapper{Models: c} }
