package app

import (
	"math"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"rental_moderation/internal/domain"
)

// amenityKey is the match key for an amenity label: lower case, single spaces,
// no diacritics. "Điều  hòa" and "dieu hoa" share a key; synonyms do not.
func amenityKey(s string) string {
	s = strings.ToLower(strings.Join(strings.Fields(s), " "))
	if s == "" {
		return ""
	}
	// Chain keeps state between calls, so build one per use.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	// đ has no decomposition
	return strings.ReplaceAll(out, "đ", "d")
}

// amenityLabel is the display form we keep: trimmed, single spaces, NFC.
func amenityLabel(s string) string {
	return norm.NFC.String(strings.Join(strings.Fields(s), " "))
}

// orderedAmenities de-duplicates labels by key, keeping the first form seen.
type orderedAmenities struct {
	keys   []string
	labels map[string]string
}

func newOrderedAmenities() *orderedAmenities {
	return &orderedAmenities{labels: map[string]string{}}
}

func (o *orderedAmenities) add(s string) {
	k := amenityKey(s)
	if k == "" {
		return
	}
	if _, seen := o.labels[k]; seen {
		return
	}
	o.labels[k] = amenityLabel(s)
	o.keys = append(o.keys, k)
}

func (o *orderedAmenities) has(k string) bool {
	_, ok := o.labels[k]
	return ok
}

func (o *orderedAmenities) list() []string {
	out := make([]string, 0, len(o.keys))
	for _, k := range o.keys {
		out = append(out, o.labels[k])
	}
	return out
}

// CompareAmenities checks what the landlord claimed against what the photos show.
func CompareAmenities(claimed, detected []string, accuracyThreshold int) domain.AmenityComparison {
	cl := newOrderedAmenities()
	for _, a := range claimed {
		cl.add(a)
	}
	det := newOrderedAmenities()
	for _, a := range detected {
		det.add(a)
	}

	out := domain.AmenityComparison{
		Verified:         []string{},
		NotDetected:      []string{},
		MissingFromInput: []string{},
		TotalClaimed:     len(cl.keys),
		TotalDetected:    len(det.keys),
	}
	for _, k := range cl.keys {
		if det.has(k) {
			out.Verified = append(out.Verified, cl.labels[k])
		} else {
			out.NotDetected = append(out.NotDetected, cl.labels[k])
		}
	}
	for _, k := range det.keys {
		if !cl.has(k) {
			out.MissingFromInput = append(out.MissingFromInput, det.labels[k])
		}
	}
	out.VerifiedCount = len(out.Verified)

	// nothing claimed, nothing to falsify
	out.AccuracyScore = 100
	if out.TotalClaimed > 0 {
		out.AccuracyScore = int(math.Round(float64(out.VerifiedCount) / float64(out.TotalClaimed) * 100))
	}
	out.IsAccurate = out.AccuracyScore >= accuracyThreshold
	return out
}
