package topic

import "strings"

// Topic is a hierarchical event type in dot notation.
type Topic string

// Wildcards and separator.
const (
	WildcardSingle = "*"
	WildcardMulti  = "**"
	Separator      = "."
)

// String returns the topic as a string.
func (t Topic) String() string {
	return string(t)
}

// Segments returns the topic split by the separator.
func (t Topic) Segments() []string {
	if t == "" {
		return nil
	}
	return strings.Split(string(t), Separator)
}

// Parent returns the topic without its last segment.
//
// Example: "preview.patch" -> "preview"
func (t Topic) Parent() Topic {
	i := strings.LastIndex(string(t), Separator)
	if i < 0 {
		return ""
	}
	return t[:i]
}

// Base returns the last segment of the topic.
func (t Topic) Base() string {
	s := string(t)
	return s[strings.LastIndex(s, Separator)+1:]
}

// HasPrefix reports whether the topic starts with the complete segments of
// prefix.
func (t Topic) HasPrefix(prefix Topic) bool {
	if prefix == "" {
		return true
	}
	s, p := string(t), string(prefix)
	if !strings.HasPrefix(s, p) {
		return false
	}
	return len(s) == len(p) || s[len(p)] == '.'
}

// IsWildcard reports whether the topic contains a wildcard.
func (t Topic) IsWildcard() bool {
	return strings.Contains(string(t), WildcardSingle)
}

// IsValid reports whether the topic is non-empty and has no empty segments.
func (t Topic) IsValid() bool {
	if t == "" {
		return false
	}
	for _, seg := range t.Segments() {
		if seg == "" {
			return false
		}
	}
	return true
}

// Matches reports whether the topic matches pattern.
func (t Topic) Matches(pattern Topic) bool {
	return matchSegments(t.Segments(), pattern.Segments())
}

func matchSegments(topic, pattern []string) bool {
	ti, pi := 0, 0
	for pi < len(pattern) {
		if pattern[pi] == WildcardMulti {
			for ; ti <= len(topic); ti++ {
				if matchSegments(topic[ti:], pattern[pi+1:]) {
					return true
				}
			}
			return false
		}
		if ti >= len(topic) {
			return false
		}
		if pattern[pi] != WildcardSingle && pattern[pi] != topic[ti] {
			return false
		}
		ti++
		pi++
	}
	return ti == len(topic)
}

// Join joins segments into a topic.
func Join(segments ...string) Topic {
	return Topic(strings.Join(segments, Separator))
}
