package domain

import (
	"errors"
	"testing"
)

func validPart() Part {
	return Part{
		PartID:             "W10195416",
		Name:               "Dishwasher Lower Rack Wheel",
		ManufacturerNumber: "W10195416",
		PartselectNumber:   "PS11750093",
		Price:              34.95,
		StockStatus:        StockInStock,
		ApplianceType:      ApplianceDishwasher,
	}
}

func TestValidatePart(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Part)
		wantErr error
	}{
		{"valid", func(p *Part) {}, nil},
		{"missing id", func(p *Part) { p.PartID = "" }, ErrInvalidPart},
		{"missing name", func(p *Part) { p.Name = "  " }, ErrInvalidPart},
		{"bad stock status", func(p *Part) { p.StockStatus = "backordered" }, ErrInvalidStockStatus},
		{"negative price", func(p *Part) { p.Price = -1 }, ErrInvalidPart},
		{"unknown appliance", func(p *Part) { p.ApplianceType = "toaster" }, ErrUnknownApplianceType},
		{"script in description", func(p *Part) { p.Description = "<script>alert(1)</script>" }, ErrSuspiciousContent},
		{"no appliance type is fine", func(p *Part) { p.ApplianceType = "" }, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPart()
			tt.mutate(&p)
			err := ValidatePart(p)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("ValidatePart() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidatePart() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateEdge(t *testing.T) {
	tests := []struct {
		name    string
		edge    CompatibilityEdge
		wantErr error
	}{
		{"valid", CompatibilityEdge{FromPartID: "A", ToPartID: "B", Relation: RelationReplaces}, nil},
		{"missing endpoint", CompatibilityEdge{FromPartID: "", ToPartID: "B", Relation: RelationReplaces}, ErrInvalidEdge},
		{"self edge", CompatibilityEdge{FromPartID: "A", ToPartID: "A", Relation: RelationRequires}, ErrInvalidEdge},
		{"bad relation", CompatibilityEdge{FromPartID: "A", ToPartID: "B", Relation: "supersedes"}, ErrInvalidRelation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEdge(tt.edge)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("ValidateEdge() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateEdge() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateVideo(t *testing.T) {
	v := InstallationVideo{VideoID: "vid-1", PartID: "PS11752778", VideoURL: "https://www.youtube.com/watch?v=abc"}
	if err := ValidateVideo(v); err != nil {
		t.Fatalf("ValidateVideo() = %v, want nil", err)
	}
	v.VideoURL = "ftp://example.com/video"
	if err := ValidateVideo(v); !errors.Is(err, ErrInvalidVideo) {
		t.Errorf("ValidateVideo() = %v, want ErrInvalidVideo", err)
	}
}

func TestValidateUtterance(t *testing.T) {
	if err := ValidateUtterance("Do you have part PS11752778 in stock?"); err != nil {
		t.Fatalf("ValidateUtterance() = %v, want nil", err)
	}
	if err := ValidateUtterance(" "); !errors.Is(err, ErrQueryTooShort) {
		t.Errorf("short query: got %v, want ErrQueryTooShort", err)
	}
	if err := ValidateUtterance("x; DROP TABLE parts"); !errors.Is(err, ErrQueryInjection) {
		t.Errorf("injection query: got %v, want ErrQueryInjection", err)
	}
}

func TestValidateTurns(t *testing.T) {
	turns := []ConversationTurn{
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "Hello! How can I help?"},
	}
	if err := ValidateTurns(turns); err != nil {
		t.Fatalf("ValidateTurns() = %v, want nil", err)
	}
	turns = append(turns, ConversationTurn{Role: "system", Content: "x"})
	if err := ValidateTurns(turns); !errors.Is(err, ErrInvalidRole) {
		t.Errorf("bad role: got %v, want ErrInvalidRole", err)
	}
}

func TestCanonicalApplianceType(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"fridge", ApplianceRefrigerator, true},
		{"Refrigerator", ApplianceRefrigerator, true},
		{"Refrigerators", ApplianceRefrigerator, true},
		{"dishwasher parts", ApplianceDishwasher, true},
		{"Dish Washer", ApplianceDishwasher, true},
		{"freezer", ApplianceRefrigerator, true},
		{"toaster", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := CanonicalApplianceType(tt.in)
			if got != tt.want || ok != tt.ok {
				t.Errorf("CanonicalApplianceType(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestStockRank(t *testing.T) {
	if StockRank(StockInStock) <= StockRank(StockUnknown) {
		t.Error("in_stock should rank above unknown")
	}
	if StockRank(StockUnknown) <= StockRank(StockOutOfStock) {
		t.Error("unknown should rank above out_of_stock")
	}
}
