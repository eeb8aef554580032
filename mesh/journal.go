package mesh

// PublishEvt is journaled for every broadcast handed to the gossip channel.
type PublishEvt struct {
	ID   string
	Hops int
	Size int
	Raw  bool
}
