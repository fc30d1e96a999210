// ABOUTME: Deterministic conversation addressing for two-party chats
// ABOUTME: Derives an order-independent conversation id from a pair of user ids

package chatid

// Separator joins the two participant ids. Provider user ids are opaque
// alphanumeric tokens, so the separator cannot collide with id content.
const Separator = "_"

// For returns the conversation id for the pair (a, b). The two ids are
// ordered lexicographically before joining, so For(a, b) == For(b, a) and
// both participants address the same message log.
func For(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + Separator + b
}
