package compose

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/FixwellAI/fixwell-mvp/engine/domain"
)

func testPart() domain.Part {
	return domain.Part{
		PartID:             "WPW10321304",
		Name:               "Whirlpool Refrigerator Door Shelf Bin",
		ManufacturerNumber: "WPW10321304",
		PartselectNumber:   "PS11752778",
		Price:              36.08,
		Currency:           "$",
		ImageURL:           "https://www.partselect.com/Images/ps11752778.jpg",
		Description:        "Clear door shelf bin for side-by-side refrigerators.",
		DetailURL:          "https://www.partselect.com/PS11752778-Door-Shelf-Bin.htm",
		StockStatus:        domain.StockInStock,
		ApplianceType:      domain.ApplianceRefrigerator,
		Brand:              "Whirlpool",
	}
}

func TestPartFragment_RoundTrip(t *testing.T) {
	frag, err := PartFragment(testPart())
	if err != nil {
		t.Fatalf("PartFragment: %v", err)
	}

	parsed := ParseFragments(frag)
	if len(parsed) != 1 || parsed[0].Tag != TagJSON {
		t.Fatalf("parsed = %+v, want one %s fragment", parsed, TagJSON)
	}
	payloads, err := parsed[0].Parts()
	if err != nil {
		t.Fatalf("Parts: %v", err)
	}
	if len(payloads) != 1 {
		t.Fatalf("got %d payloads, want 1", len(payloads))
	}

	got := payloads[0]
	if got.ManufacturerNumber != "WPW10321304" {
		t.Errorf("manufacturer = %q, want WPW10321304", got.ManufacturerNumber)
	}
	if got.PartselectNumber != "PS11752778" {
		t.Errorf("partselect = %q, want PS11752778", got.PartselectNumber)
	}
	if got.Price != "$36.08" {
		t.Errorf("price = %q, want $36.08", got.Price)
	}
}

func TestPartFragment_WireKeys(t *testing.T) {
	frag, err := PartFragment(testPart())
	if err != nil {
		t.Fatalf("PartFragment: %v", err)
	}
	body := ParseFragments(frag)[0].Body

	var raw map[string]any
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		t.Fatalf("fragment body is not valid JSON: %v", err)
	}
	for _, key := range []string{"part_name", "price", "image_url", "manufacturer_number", "partselect_number", "description", "url"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("missing wire key %q", key)
		}
	}
	if len(raw) != 7 {
		t.Errorf("got %d keys, want exactly 7: %v", len(raw), raw)
	}
}

func TestPartFragment_Rejected(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.Part)
	}{
		{"no name", func(p *domain.Part) { p.Name = " " }},
		{"no identifiers", func(p *domain.Part) {
			p.ManufacturerNumber = ""
			p.PartselectNumber = ""
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testPart()
			tt.mutate(&p)
			if _, err := PartFragment(p); !errors.Is(err, domain.ErrMalformedFragment) {
				t.Errorf("err = %v, want ErrMalformedFragment", err)
			}
		})
	}
}

func TestDisplayPrice(t *testing.T) {
	tests := []struct {
		name     string
		price    float64
		currency string
		want     string
	}{
		{"dollar prefix", 36.08, "$", "$36.08"},
		{"lettered currency", 22.5, "CAD", "CAD 22.50"},
		{"default currency", 1299, "", "$1299.00"},
		{"unknown price", 0, "$", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := domain.Part{Price: tt.price, Currency: tt.currency}
			if got := displayPrice(p); got != tt.want {
				t.Errorf("displayPrice = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPartListFragment(t *testing.T) {
	a, b, c := testPart(), testPart(), testPart()
	b.PartID, b.PartselectNumber, b.Name = "W10195416", "PS11722128", "Bimetal Defrost Thermostat"
	c.PartID, c.PartselectNumber, c.Name = "00645825", "PS3439649", "Bosch Silverware Basket"

	frag, err := PartListFragment([]domain.Part{a, b, c})
	if err != nil {
		t.Fatalf("PartListFragment: %v", err)
	}

	parsed := ParseFragments(frag)
	if len(parsed) != 1 || parsed[0].Tag != TagList {
		t.Fatalf("parsed = %+v, want one %s fragment", parsed, TagList)
	}
	payloads, err := parsed[0].Parts()
	if err != nil {
		t.Fatalf("Parts: %v", err)
	}
	if len(payloads) != 3 {
		t.Fatalf("got %d payloads, want 3", len(payloads))
	}
	if payloads[1].PartselectNumber != "PS11722128" {
		t.Errorf("order not preserved: %+v", payloads)
	}
}

func TestPartListFragment_CapsAtTen(t *testing.T) {
	parts := make([]domain.Part, 12)
	for i := range parts {
		parts[i] = testPart()
	}

	frag, err := PartListFragment(parts)
	if err != nil {
		t.Fatalf("PartListFragment: %v", err)
	}
	payloads, err := ParseFragments(frag)[0].Parts()
	if err != nil {
		t.Fatalf("Parts: %v", err)
	}
	if len(payloads) != maxListParts {
		t.Errorf("got %d payloads, want %d", len(payloads), maxListParts)
	}
}

func TestPartListFragment_InvalidMemberFailsWhole(t *testing.T) {
	bad := testPart()
	bad.ManufacturerNumber, bad.PartselectNumber = "", ""

	if _, err := PartListFragment([]domain.Part{testPart(), bad}); !errors.Is(err, domain.ErrMalformedFragment) {
		t.Errorf("err = %v, want ErrMalformedFragment", err)
	}
}

func TestVideoFragment(t *testing.T) {
	p := testPart()
	v := domain.InstallationVideo{
		VideoID:  "vid-1",
		PartID:   p.PartID,
		VideoURL: "https://www.youtube.com/watch?v=b3pvJWAkJ0A",
		Title:    "Replacing the Door Shelf Bin",
	}

	frag, err := VideoFragment(p, v)
	if err != nil {
		t.Fatalf("VideoFragment: %v", err)
	}
	payloads, err := ParseFragments(frag)[0].Parts()
	if err != nil {
		t.Fatalf("Parts: %v", err)
	}
	if payloads[0].URL != v.VideoURL {
		t.Errorf("url = %q, want the video url", payloads[0].URL)
	}
	if payloads[0].PartName != "Replacing the Door Shelf Bin" {
		t.Errorf("part_name = %q, want the video title", payloads[0].PartName)
	}
}

func TestVideoFragment_UntitledAndMissingURL(t *testing.T) {
	p := testPart()

	frag, err := VideoFragment(p, domain.InstallationVideo{VideoURL: "https://youtu.be/x"})
	if err != nil {
		t.Fatalf("VideoFragment: %v", err)
	}
	payloads, _ := ParseFragments(frag)[0].Parts()
	if want := p.Name + " installation video"; payloads[0].PartName != want {
		t.Errorf("part_name = %q, want %q", payloads[0].PartName, want)
	}

	if _, err := VideoFragment(p, domain.InstallationVideo{}); !errors.Is(err, domain.ErrMalformedFragment) {
		t.Errorf("err = %v, want ErrMalformedFragment for a missing url", err)
	}
}

func TestParseFragments(t *testing.T) {
	frag1, _ := PartFragment(testPart())
	frag2, _ := PartListFragment([]domain.Part{testPart(), testPart()})
	body := "Here is the part you asked about.\n\n" + frag1 +
		"\n\nAnd some alternatives:\n\n" + frag2 + "\n\nAnything else?"

	frags := ParseFragments(body)
	if len(frags) != 2 {
		t.Fatalf("got %d fragments, want 2", len(frags))
	}
	if frags[0].Tag != TagJSON || frags[1].Tag != TagList {
		t.Errorf("tags = %s, %s; want %s, %s", frags[0].Tag, frags[1].Tag, TagJSON, TagList)
	}
}

func TestParseFragments_IgnoresOtherFences(t *testing.T) {
	body := "Some code:\n```go\nfmt.Println(1)\n```\nand an unterminated block:\n```json-to-render\n{\"part_name\": \"x\""
	if frags := ParseFragments(body); len(frags) != 0 {
		t.Errorf("got %d fragments, want 0: %+v", len(frags), frags)
	}
}

func TestFragmentParts_Malformed(t *testing.T) {
	if _, err := (Fragment{Tag: TagJSON, Body: "{"}).Parts(); err == nil {
		t.Error("expected a parse error for truncated JSON")
	}
	if _, err := (Fragment{Tag: "mystery", Body: "{}"}).Parts(); err == nil {
		t.Error("expected an error for an unknown tag")
	}
}
