package gemini

import (
	"fmt"
	"strings"

	"github.com/lithammer/dedent"

	"rental_moderation/internal/domain"
)

const roomPromptTemplate = `
	Analyze this photo of a room or apartment offered for rent and list the amenities you can see.

	Amenities to look for (use exactly these labels):
	%s

	Respond in JSON format with these fields:
	- detectedAmenities: labels from the list above that are ACTUALLY visible in the photo
	- roomType: one of bedroom, living_room, kitchen, bathroom, studio, balcony, exterior, other
	- roomCondition: one of new, good, average, old
	- cleanliness: one of clean, normal, dirty
	- naturalLight: one of bright, moderate, dark
	- spaceAssessment: a few words about how spacious the room looks, e.g. "spacious, about 20m²"
	- confidence: how sure you are about this analysis, a number between 0 and 1
	- description: one or two sentences describing the room
	- warnings: problems a moderator should know about (blurry or dark photo, clutter, watermark,
	  photo that does not show a room, missing basic amenities); an empty list when there are none

	Example response:
	{"detectedAmenities": ["Giường", "Điều hòa", "Cửa sổ"], "roomType": "bedroom", "roomCondition": "good", "cleanliness": "clean", "naturalLight": "bright", "spaceAssessment": "medium, about 18m²", "confidence": 0.86, "description": "Bright bedroom with a double bed and a wall-mounted air conditioner.", "warnings": []}

	Be objective. Do not list an amenity unless you actually see it.
	Respond ONLY with the JSON object, no markdown or other text.`

func roomPrompt(catalog []string) string {
	return fmt.Sprintf(strings.TrimSpace(dedent.Dedent(roomPromptTemplate)), strings.Join(catalog, ", "))
}

var defaultRoomPrompt = roomPrompt(domain.AmenityCatalog)
