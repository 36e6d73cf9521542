package store

// ResourceEvent is one retain (+1) or release (-1) of a live reference.
type ResourceEvent struct {
	Seq   int64  `json:"seq"`
	Uid   string `json:"uid"`
	Kind  string `json:"kind"`
	Delta int    `json:"delta"`
	// Live is the count after applying Delta.
	Live int64 `json:"live"`
}

// Resource is the current ledger row for one uid.
type Resource struct {
	Uid      string `json:"uid"`
	Kind     string `json:"kind"`
	Live     int64  `json:"live"`
	FirstSeq int64  `json:"first_seq"`
	LastSeq  int64  `json:"last_seq"`
}

// Transition is one thread state change.
type Transition struct {
	Seq    int64  `json:"seq"`
	Thread string `json:"thread_uid"`
	Path   string `json:"path"`
	Event  string `json:"event"`
	From   string `json:"from"`
	To     string `json:"to"`
}

// Delivery is one message handed to or taken from a mailbox.
type Delivery struct {
	Seq       int64  `json:"seq"`
	From      string `json:"from"`
	To        string `json:"to"`
	Interface string `json:"interface"`
	Mode      string `json:"mode"`
	Outcome   string `json:"outcome"`
	Shared    string `json:"shared_uid,omitempty"`
}
