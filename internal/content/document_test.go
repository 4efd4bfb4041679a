package content

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDecodeEncodeRoundTrip(t *testing.T) {
	doc := Default()
	raw, err := doc.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	decoded, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if diff := cmp.Diff(doc, decoded); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
	if !Equal(doc, decoded) {
		t.Fatal("Equal() = false after round trip")
	}
}

func TestDecodeIgnoresUnknownKeys(t *testing.T) {
	doc, err := Decode([]byte(`{"hero":{"title":"Hi","legacy":true},"footer":{"text":"x"}}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if doc.Hero.Title != "Hi" {
		t.Fatalf("unexpected hero title %q", doc.Hero.Title)
	}
}

func TestDecodeRejectsMalformedJSON(t *testing.T) {
	if _, err := Decode([]byte(`{"hero":`)); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestCloneSharesNothing(t *testing.T) {
	doc := Default()
	doc.Projects.Items[0].Testimonial = &ProjectTestimonial{Quote: "original"}
	clone := doc.Clone()

	clone.Services.Cards[0].Title = "changed"
	clone.Projects.Items[0].Technologies[0] = "changed"
	clone.Projects.Items[0].Testimonial.Quote = "changed"
	clone.Testimonials.Clients[0].Name = "changed"

	if doc.Services.Cards[0].Title == "changed" {
		t.Fatal("clone shares services.cards")
	}
	if doc.Projects.Items[0].Technologies[0] == "changed" {
		t.Fatal("clone shares project technologies")
	}
	if doc.Projects.Items[0].Testimonial.Quote != "original" {
		t.Fatal("clone shares project testimonial")
	}
	if doc.Testimonials.Clients[0].Name == "changed" {
		t.Fatal("clone shares testimonials.clients")
	}
}

func TestEqualDetectsDifference(t *testing.T) {
	a := Default()
	b := Default()
	if !Equal(a, b) {
		t.Fatal("expected equal defaults")
	}
	b.Contact.Text += "!"
	if Equal(a, b) {
		t.Fatal("expected documents to differ")
	}
}

func TestSplitJoinList(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want []string
	}{
		{name: "simple", in: "PLC, SCADA, ModBus", want: []string{"PLC", "SCADA", "ModBus"}},
		{name: "extra whitespace", in: "  PLC ,SCADA  ", want: []string{"PLC", "SCADA"}},
		{name: "empty segments", in: ",PLC,,SCADA,", want: []string{"PLC", "SCADA"}},
		{name: "empty", in: "", want: []string{}},
		{name: "only separators", in: " , ,", want: []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if diff := cmp.Diff(tc.want, SplitList(tc.in)); diff != "" {
				t.Fatalf("SplitList(%q) mismatch (-want +got):\n%s", tc.in, diff)
			}
		})
	}
}

func TestSplitOfJoinRestoresList(t *testing.T) {
	lists := [][]string{
		{"PLC"},
		{"PLC", "SCADA"},
		{"Siemens S7", "Allen-Bradley", "Modbus TCP"},
	}
	for _, list := range lists {
		if diff := cmp.Diff(list, SplitList(JoinList(list))); diff != "" {
			t.Fatalf("split(join(%v)) mismatch (-want +got):\n%s", list, diff)
		}
	}
}

func TestFragments(t *testing.T) {
	doc := Document{
		Hero: Hero{Title: "Welcome", Subtitle: "  "},
		Services: Services{
			Cards: []ServiceCard{{Title: "X", Description: "d1"}, {Title: "Y"}},
		},
		Projects: Projects{
			Items: []Project{{
				Title:        "Line",
				Technologies: []string{"PLC", "SCADA"},
				Testimonial:  &ProjectTestimonial{Quote: "Great"},
			}},
		},
	}

	got := Fragments(doc)
	want := []Fragment{
		{Path: "hero.title", Section: "hero", Text: "Welcome"},
		{Path: "services.cards[0].title", Section: "services", Text: "X"},
		{Path: "services.cards[0].description", Section: "services", Text: "d1"},
		{Path: "services.cards[1].title", Section: "services", Text: "Y"},
		{Path: "projects.items[0].title", Section: "projects", Text: "Line"},
		{Path: "projects.items[0].technologies[0]", Section: "projects", Text: "PLC"},
		{Path: "projects.items[0].technologies[1]", Section: "projects", Text: "SCADA"},
		{Path: "projects.items[0].testimonial.quote", Section: "projects", Text: "Great"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Fragments() mismatch (-want +got):\n%s", diff)
	}
}

func TestFragmentsCoverDefaultDocument(t *testing.T) {
	fragments := Fragments(Default())
	sections := map[string]bool{}
	for _, f := range fragments {
		if strings.TrimSpace(f.Text) == "" {
			t.Fatalf("empty fragment at %s", f.Path)
		}
		sections[f.Section] = true
	}
	for _, name := range []string{"hero", "services", "mission", "skills", "projects", "testimonials", "contact"} {
		if !sections[name] {
			t.Fatalf("no fragments for section %s", name)
		}
	}
}
