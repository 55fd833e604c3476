// Package testsupport offers a fake REST backend and sample records for
// package tests.
package testsupport

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

// ConsultancyRecord returns a consultancy as the detail endpoint serializes
// it: nested relations, a gallery and branches.
func ConsultancyRecord() map[string]any {
	return map[string]any{
		"id":                 7,
		"name":               "Global Pathways",
		"slug":               "global-pathways",
		"address":            "Putalisadak, Kathmandu",
		"latitude":           "27.7041",
		"longitude":          "85.3206",
		"establishment_date": "2012-04-01",
		"website":            "https://pathways.example.com",
		"email":              "hello@pathways.example.com",
		"phone":              "+977-1-4000000",
		"priority":           3,
		"about":              "<p>Trusted since 2012.</p><script>alert(1)</script>",
		"services":           "<ul><li>Visa</li></ul>",
		"moe_certified":      true,
		"has_branches":       true,
		"is_verified":        false,
		"logo":               "/media/consultancy/logo.png",
		"cover_photo":        nil,
		"brochure":           "/media/consultancy/brochure.pdf",
		"districts": []any{
			map[string]any{"id": 1, "name": "Kathmandu"},
			map[string]any{"id": 2, "name": "Lalitpur"},
		},
		"study_abroad_destinations": []any{
			map[string]any{"id": 4, "title": "Australia"},
		},
		"test_preparation": []any{
			map[string]any{"id": 9, "name": "IELTS"},
		},
		"partner_universities": []any{},
		"branches": []any{
			map[string]any{"id": 31, "branch_name": "Pokhara", "location": "Lakeside", "is_main_branch": false},
		},
		"gallery_images": []any{
			map[string]any{"id": 11, "image": "/media/gallery/a.jpg"},
			map[string]any{"id": 12, "image": "/media/gallery/b.jpg"},
		},
	}
}

// PNG encodes a w×h opaque image.
func PNG(t testing.TB, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}
