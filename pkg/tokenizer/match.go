package tokenizer

import (
	"github.com/sirupsen/logrus"
)

// ruleKey identifies one rule of one grammar entry.
type ruleKey struct {
	entry string
	index int
}

// rematch carries state into a recursive matchGrammar call made after a
// greedy match swallowed several nodes. cause is the rule that made the
// call and must not fire again in that frame; reach is the furthest offset
// already claimed.
type rematch struct {
	cause ruleKey
	reach int
}

// matcher runs a grammar over one private stream.
type matcher struct {
	text []rune
	list *stream
	log  logrus.FieldLogger
}

// matchGrammar applies every rule of g, in declaration order, to the
// unclassified nodes following start. Matches are spliced into the stream as
// tokens in place of the text they cover.
func (m *matcher) matchGrammar(g *Grammar, start cursor, rm *rematch) error {
	for _, e := range g.entries {
		for j, rule := range e.Rules {
			key := ruleKey{entry: e.Name, index: j}
			if rm != nil && rm.cause == key {
				return nil
			}
			if err := m.matchRule(g, key, rule, start, rm); err != nil || m.overflow() {
				return err
			}
		}
	}
	return nil
}

// overflow reports whether the stream holds more nodes than the text has
// runes. Only a runaway grammar gets there; expansion stops and whatever is
// left stays unclassified.
func (m *matcher) overflow() bool {
	return m.list.length > len(m.text)
}

func (m *matcher) matchRule(g *Grammar, key ruleKey, rule *Rule, start cursor, rm *rematch) error {
	tail := m.list.tail
	for cur := (cursor{node: start.node.next, pos: start.pos}); cur.node != tail; cur.step() {
		if rm != nil && cur.pos >= rm.reach {
			break
		}
		if m.overflow() {
			m.log.WithFields(logrus.Fields{
				"entry": key.entry,
				"nodes": m.list.length,
				"runes": len(m.text),
			}).Debug("Token stream outgrew its text, leaving the remainder unclassified")
			return nil
		}
		if cur.node.tok != nil {
			continue
		}

		str := cur.node.text
		removeCount := 1
		var mt *match
		var err error

		if rule.Greedy {
			mt, err = rule.Pattern.find(m.text, cur.pos, rule.Lookbehind)
			if err != nil {
				return err
			}
			if mt == nil || mt.index >= len(m.text) {
				break
			}
			from := mt.index
			to := mt.index + len(mt.text)

			// Find the node the match starts in.
			p := cur.pos + cur.node.size()
			for from >= p {
				cur.node = cur.node.next
				p += cur.node.size()
			}
			p -= cur.node.size()
			cur.pos = p

			// Classified text cannot be re-consumed.
			if cur.node.tok != nil {
				continue
			}

			// Count the nodes the match covers, plus any trailing text nodes.
			for k := cur.node; k != tail && (p < to || k.tok == nil); k = k.next {
				removeCount++
				p += k.size()
			}
			removeCount--

			str = m.text[cur.pos:p:p]
			mt.index -= cur.pos
		} else {
			mt, err = rule.Pattern.find(str, 0, rule.Lookbehind)
			if err != nil {
				return err
			}
			if mt == nil {
				continue
			}
		}

		from := mt.index
		before := str[:from:from]
		after := str[from+len(mt.text):]

		reach := cur.pos + len(str)
		if rm != nil && reach > rm.reach {
			rm.reach = reach
		}

		removeFrom := cur.node.prev
		if len(before) > 0 {
			removeFrom = m.list.insertText(removeFrom, before)
			cur.pos += len(before)
		}
		m.list.removeRun(removeFrom, removeCount)

		tok, err := m.wrap(key.entry, rule, mt.text)
		if err != nil {
			return err
		}
		cur.node = m.list.insertToken(removeFrom, tok)
		if len(after) > 0 {
			m.list.insertText(cur.node, after)
		}

		if removeCount > 1 {
			nested := &rematch{cause: key, reach: reach}
			if err := m.matchGrammar(g, cursor{node: cur.node.prev, pos: cur.pos}, nested); err != nil {
				return err
			}
			if rm != nil && nested.reach > rm.reach {
				rm.reach = nested.reach
			}
		}
	}
	return nil
}

// wrap builds the token for a match, tokenizing the matched text with the
// rule's nested grammar when it has one.
func (m *matcher) wrap(tokenType string, rule *Rule, text []rune) (*Token, error) {
	inside := rule.Inside.Grammar()
	if inside == nil {
		return NewToken(tokenType, string(text), rule.Alias...), nil
	}
	items, err := tokenizeRunes(text, inside, m.log)
	if err != nil {
		return nil, err
	}
	return NewNestedToken(tokenType, items, len(text), rule.Alias...), nil
}
