package tokenizer

// node is one element of a stream. Exactly one of text or tok is meaningful:
// a node holds unclassified text unless tok is non-nil. Text nodes are always
// sub-slices of the original input, so they are never appended to.
type node struct {
	text []rune
	tok  *Token
	prev *node
	next *node
}

func (n *node) size() int {
	if n.tok != nil {
		return n.tok.Length
	}
	return len(n.text)
}

// stream is a doubly linked list with sentinel head and tail nodes. The
// sentinels hold no value and are never removed.
type stream struct {
	head   *node
	tail   *node
	length int // number of interior nodes
}

func newStream() *stream {
	head := &node{}
	tail := &node{prev: head}
	head.next = tail
	return &stream{head: head, tail: tail}
}

func (s *stream) link(anchor, n *node) *node {
	next := anchor.next
	n.prev = anchor
	n.next = next
	anchor.next = n
	next.prev = n
	s.length++
	return n
}

// insertText inserts a text node between anchor and anchor.next.
func (s *stream) insertText(anchor *node, text []rune) *node {
	return s.link(anchor, &node{text: text})
}

// insertToken inserts a token node between anchor and anchor.next.
func (s *stream) insertToken(anchor *node, tok *Token) *node {
	return s.link(anchor, &node{tok: tok})
}

// removeRun removes up to count nodes following anchor, stopping at the tail.
func (s *stream) removeRun(anchor *node, count int) {
	next := anchor.next
	i := 0
	for ; i < count && next != s.tail; i++ {
		next = next.next
	}
	anchor.next = next
	next.prev = anchor
	s.length -= i
}

// materialize returns the stream contents in order.
func (s *stream) materialize() []Item {
	items := make([]Item, 0, s.length)
	for n := s.head.next; n != s.tail; n = n.next {
		if n.tok != nil {
			items = append(items, n.tok)
		} else {
			items = append(items, Text(string(n.text)))
		}
	}
	return items
}

// cursor is a position in a stream: a node and the rune offset of that node
// in the original text. For a sentinel or the node before the first one
// scanned, pos is the offset of the node that follows it.
type cursor struct {
	node *node
	pos  int
}

// step moves the cursor to the following node.
func (c *cursor) step() {
	c.pos += c.node.size()
	c.node = c.node.next
}
