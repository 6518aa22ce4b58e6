package app

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"rental_moderation/internal/domain"
)

/********** alias registries (single source of truth) **********/

// The vision model does not always honour the requested field names, and older
// prompts asked for Vietnamese labels. Every field is looked up by alias.
var assessmentAliases = map[string][]string{
	"room_type":  {"roomType", "room_type", "room", "analysis.roomType"},
	"condition":  {"roomCondition", "room_condition", "condition", "analysis.roomCondition"},
	"clean":      {"cleanliness", "clean", "analysis.cleanliness"},
	"light":      {"naturalLight", "natural_light", "light", "lighting", "analysis.naturalLight"},
	"space":      {"spaceAssessment", "space_assessment", "space", "estimatedArea"},
	"amenities":  {"detectedAmenities", "detected_amenities", "amenities", "analysis.detectedAmenities"},
	"confidence": {"confidence", "confidenceScore", "confidence_score", "score"},
	"desc":       {"description", "summary", "desc"},
	"warnings":   {"warnings", "issues", "problems"},
}

// Tier vocabularies keyed by amenityKey() of the label so accents and case
// do not matter.
var roomTypes = map[string]string{
	"bedroom": "bedroom", "phong ngu": "bedroom",
	"living room": "living_room", "living_room": "living_room", "phong khach": "living_room",
	"kitchen": "kitchen", "bep": "kitchen", "phong bep": "kitchen",
	"bathroom": "bathroom", "phong tam": "bathroom", "wc": "bathroom", "nha ve sinh": "bathroom",
	"studio": "studio", "can ho": "studio", "phong tro": "studio",
	"balcony": "balcony", "ban cong": "balcony",
	"exterior": "exterior", "facade": "exterior", "mat tien": "exterior",
	"other": "other", "khac": "other",
}

var conditionTiers = map[string]string{
	"new": "new", "moi": "new",
	"good": "good", "tot": "good",
	"average": "average", "trung binh": "average",
	"old": "old", "cu": "old", "poor": "old", "can sua chua": "old",
}

var cleanlinessTiers = map[string]string{
	"clean": "clean", "sach se": "clean", "sach": "clean",
	"normal": "normal", "average": "normal", "binh thuong": "normal",
	"dirty": "dirty", "messy": "dirty", "can don dep": "dirty", "bua bon": "dirty",
}

var lightTiers = map[string]string{
	"bright": "bright", "nhieu anh sang": "bright", "sang": "bright",
	"moderate": "moderate", "average": "moderate", "trung binh": "moderate",
	"dark": "dark", "toi": "dark",
}

var errUnparseableAssessment = errors.New("vision payload has none of the expected fields")

/********** tiny helpers **********/

// lookupAny: safe nested lookup with dot paths on maps.
func lookupAny(m map[string]any, path string) any {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := obj[part]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}

// lookupStr returns string at path or "".
func lookupStr(m map[string]any, path string) string {
	if v := lookupAny(m, path); v != nil {
		if s, ok := v.(string); ok {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// firstNonEmptyAlias: first non-empty string for a named alias set.
func firstNonEmptyAlias(m map[string]any, aliases map[string][]string, key string) string {
	for _, p := range aliases[key] {
		if s := lookupStr(m, p); s != "" {
			return s
		}
	}
	return ""
}

// getFloatFlexible: number from several paths (float64/int/string like "0,85" or "85%").
func getFloatFlexible(m map[string]any, paths ...string) *float64 {
	for _, k := range paths {
		switch v := lookupAny(m, k).(type) {
		case float64:
			f := v
			return &f
		case int:
			f := float64(v)
			return &f
		case string:
			s := strings.TrimSpace(strings.ReplaceAll(v, ",", "."))
			pct := strings.HasSuffix(s, "%")
			s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
			if s == "" {
				continue
			}
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				if pct {
					f /= 100
				}
				return &f
			}
		}
	}
	return nil
}

// firstSliceStrings: accept []any with either strings or {name/label}, or a
// comma separated string.
func firstSliceStrings(m map[string]any, paths ...string) ([]string, bool) {
	for _, k := range paths {
		switch raw := lookupAny(m, k).(type) {
		case []any:
			out := make([]string, 0, len(raw))
			for _, it := range raw {
				switch t := it.(type) {
				case string:
					if s := strings.TrimSpace(t); s != "" {
						out = append(out, s)
					}
				case map[string]any:
					if n, ok := t["name"].(string); ok && strings.TrimSpace(n) != "" {
						out = append(out, strings.TrimSpace(n))
						continue
					}
					if n, ok := t["label"].(string); ok && strings.TrimSpace(n) != "" {
						out = append(out, strings.TrimSpace(n))
					}
				}
			}
			return out, true
		case string:
			var out []string
			for _, p := range strings.Split(raw, ",") {
				if s := strings.TrimSpace(p); s != "" {
					out = append(out, s)
				}
			}
			return out, true
		}
	}
	return nil, false
}

func tier(vocab map[string]string, raw string) string {
	if t, ok := vocab[amenityKey(raw)]; ok {
		return t
	}
	return domain.UnknownTier
}

// clampConfidence keeps confidence in [0,1]. Bare numbers from 2 to 100 are
// read as percent; anything between 1 and 2 is a slightly-over fraction.
func clampConfidence(f float64) float64 {
	if f >= 2 && f <= 100 {
		f /= 100
	}
	switch {
	case math.IsNaN(f), f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}

/********** assessment mapper **********/

func mapAssessment(image string, p map[string]any) (domain.ImageAssessment, error) {
	roomRaw := firstNonEmptyAlias(p, assessmentAliases, "room_type")
	amenities, hasAmenities := firstSliceStrings(p, assessmentAliases["amenities"]...)
	conf := getFloatFlexible(p, assessmentAliases["confidence"]...)
	if roomRaw == "" && !hasAmenities && conf == nil {
		return domain.ImageAssessment{Image: image}, errUnparseableAssessment
	}

	a := domain.ImageAssessment{
		Image:             image,
		Analyzed:          true,
		RoomType:          tier(roomTypes, roomRaw),
		RoomCondition:     tier(conditionTiers, firstNonEmptyAlias(p, assessmentAliases, "condition")),
		Cleanliness:       tier(cleanlinessTiers, firstNonEmptyAlias(p, assessmentAliases, "clean")),
		NaturalLight:      tier(lightTiers, firstNonEmptyAlias(p, assessmentAliases, "light")),
		SpaceAssessment:   firstNonEmptyAlias(p, assessmentAliases, "space"),
		Description:       firstNonEmptyAlias(p, assessmentAliases, "desc"),
		DetectedAmenities: []string{},
		Warnings:          []string{},
	}

	seen := newOrderedAmenities()
	for _, am := range amenities {
		seen.add(am)
	}
	a.DetectedAmenities = seen.list()

	if conf != nil {
		a.Confidence = clampConfidence(*conf)
	}
	if ws, ok := firstSliceStrings(p, assessmentAliases["warnings"]...); ok {
		a.Warnings = append(a.Warnings, ws...)
	}
	return a, nil
}
