package core

import (
	"fmt"
	"strings"
)

const (
	BucketMemorialFund    Bucket = "memorial_fund"
	BucketMonthlyDonation Bucket = "monthly_donation"
	BucketOther           Bucket = "other"
)

// Bucket is a canonical fund category used for aggregation.
type Bucket string

// NamedBuckets lists the buckets that have alias sets, in report order.
func NamedBuckets() []Bucket {
	return []Bucket{BucketMemorialFund, BucketMonthlyDonation}
}

// AllBuckets lists every bucket including the catch-all.
func AllBuckets() []Bucket {
	return append(NamedBuckets(), BucketOther)
}

// ParseBucket accepts a canonical bucket identifier.
func ParseBucket(s string) (Bucket, error) {
	for _, b := range AllBuckets() {
		if string(b) == s {
			return b, nil
		}
	}
	return "", NewValidationError("bucket", fmt.Sprintf("unknown bucket %q", s))
}

var defaultAliases = map[Bucket][]string{
	BucketMemorialFund: {
		"mayyathu",
		"mayyathu_fund",
		"mayyathu fund",
		"mayyathu-fund",
		"memorial_fund",
	},
	BucketMonthlyDonation: {
		"monthly",
		"monthly_donation",
		"monthly donation",
		"monthly-donation",
	},
}

// Normalizer maps raw collection categories to buckets. Matching is exact and
// case-sensitive; anything unknown lands in BucketOther. The zero value
// classifies everything as BucketOther.
type Normalizer struct {
	index   map[string]Bucket
	aliases map[Bucket][]string
}

var defaultNormalizer = NewNormalizer(defaultAliases)

// DefaultNormalizer returns the normalizer built from the built-in alias table.
func DefaultNormalizer() Normalizer {
	return defaultNormalizer
}

// NewNormalizer builds a normalizer from an alias table. An alias listed under
// two buckets keeps the first bucket in NamedBuckets order.
func NewNormalizer(aliases map[Bucket][]string) Normalizer {
	n := Normalizer{
		index:   make(map[string]Bucket),
		aliases: make(map[Bucket][]string),
	}
	for _, b := range NamedBuckets() {
		for _, a := range aliases[b] {
			if _, taken := n.index[a]; taken || a == "" {
				continue
			}
			n.index[a] = b
			n.aliases[b] = append(n.aliases[b], a)
		}
	}
	return n
}

// WithAliases returns a copy of n extended with extra aliases. Existing
// aliases are never reassigned.
func (n Normalizer) WithAliases(extra map[Bucket][]string) Normalizer {
	merged := make(map[Bucket][]string, len(n.aliases))
	for _, b := range NamedBuckets() {
		merged[b] = append(append([]string(nil), n.aliases[b]...), extra[b]...)
	}
	return NewNormalizer(merged)
}

// Normalize returns the bucket for a raw category.
func (n Normalizer) Normalize(raw string) Bucket {
	if b, ok := n.index[raw]; ok {
		return b
	}
	return BucketOther
}

// Aliases returns the accepted raw categories of a named bucket. BucketOther
// has no aliases.
func (n Normalizer) Aliases(b Bucket) []string {
	return append([]string(nil), n.aliases[b]...)
}

// ParseAliasConfig parses "bucket=alias|alias;bucket=alias" into an alias
// table. Aliases are taken verbatim apart from surrounding whitespace.
func ParseAliasConfig(s string) (map[Bucket][]string, error) {
	out := make(map[Bucket][]string)
	for _, entry := range strings.Split(s, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, list, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("alias entry %q: missing '='", entry)
		}
		b, err := ParseBucket(strings.TrimSpace(name))
		if err != nil {
			return nil, fmt.Errorf("alias entry %q: %w", entry, err)
		}
		if b == BucketOther {
			return nil, fmt.Errorf("alias entry %q: the other bucket takes no aliases", entry)
		}
		for _, a := range strings.Split(list, "|") {
			if a = strings.TrimSpace(a); a != "" {
				out[b] = append(out[b], a)
			}
		}
	}
	return out, nil
}
