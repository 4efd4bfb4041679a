// Package content holds the site copy document and the path-addressed
// mutations applied to it while an operator edits.
package content

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Document is the whole site's editable copy. There is exactly one per
// deployment.
type Document struct {
	Hero         Hero         `json:"hero"`
	Services     Services     `json:"services"`
	Mission      Mission      `json:"mission"`
	Skills       Skills       `json:"skills"`
	Projects     Projects     `json:"projects"`
	Testimonials Testimonials `json:"testimonials"`
	Contact      Contact      `json:"contact"`
}

type Hero struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
}

type Services struct {
	IntroTitle string        `json:"introTitle"`
	IntroText  string        `json:"introText"`
	Cards      []ServiceCard `json:"cards"`
}

type ServiceCard struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type Mission struct {
	MainTitle      string         `json:"mainTitle"`
	SubTitle       string         `json:"subTitle"`
	IntroParagraph string         `json:"introParagraph"`
	Points         []MissionPoint `json:"points"`
}

type MissionPoint struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

type Skills struct {
	Hardware       []Skill         `json:"hardware"`
	Software       []Skill         `json:"software"`
	Tools          []Skill         `json:"tools"`
	Certifications []Certification `json:"certifications"`
}

type Skill struct {
	Name string `json:"name"`
}

type Certification struct {
	Title        string `json:"title"`
	Organization string `json:"organization"`
	ID           string `json:"id"`
}

type Projects struct {
	Items []Project `json:"items"`
}

type Project struct {
	Title            string              `json:"title"`
	Description      string              `json:"description"`
	Technologies     []string            `json:"technologies"`
	ImageSrc         string              `json:"imageSrc"`
	Challenge        string              `json:"challenge,omitempty"`
	Solution         string              `json:"solution,omitempty"`
	Results          string              `json:"results,omitempty"`
	AdditionalImages []Image             `json:"additionalImages,omitempty"`
	Testimonial      *ProjectTestimonial `json:"testimonial,omitempty"`
}

type Image struct {
	Src string `json:"src"`
	Alt string `json:"alt"`
}

type ProjectTestimonial struct {
	Quote    string `json:"quote"`
	Name     string `json:"name"`
	Position string `json:"position"`
	Company  string `json:"company"`
}

type Testimonials struct {
	Items   []Testimonial `json:"items"`
	Clients []Client      `json:"clients"`
}

type Testimonial struct {
	Quote    string `json:"quote"`
	Name     string `json:"name"`
	Position string `json:"position"`
	Company  string `json:"company"`
	Initials string `json:"initials"`
	ImageSrc string `json:"imageSrc,omitempty"`
}

type Client struct {
	Name    string `json:"name"`
	LogoSrc string `json:"logoSrc,omitempty"`
}

type Contact struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

// Decode parses a stored document. Unknown keys are ignored so that older
// rows with extra fields still load.
func Decode(raw []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Document{}, fmt.Errorf("decode content document: %w", err)
	}
	return doc, nil
}

// Encode returns the canonical JSON form of the document.
func (d Document) Encode() ([]byte, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode content document: %w", err)
	}
	return raw, nil
}

// Equal reports whether two documents encode to the same bytes.
func Equal(a, b Document) bool {
	left, err := a.Encode()
	if err != nil {
		return false
	}
	right, err := b.Encode()
	if err != nil {
		return false
	}
	return bytes.Equal(left, right)
}

// Clone returns a deep copy sharing no slices or pointers with d.
func (d Document) Clone() Document {
	out := d
	out.Services.Cards = cloneSlice(d.Services.Cards)
	out.Mission.Points = cloneSlice(d.Mission.Points)
	out.Skills.Hardware = cloneSlice(d.Skills.Hardware)
	out.Skills.Software = cloneSlice(d.Skills.Software)
	out.Skills.Tools = cloneSlice(d.Skills.Tools)
	out.Skills.Certifications = cloneSlice(d.Skills.Certifications)
	out.Testimonials.Items = cloneSlice(d.Testimonials.Items)
	out.Testimonials.Clients = cloneSlice(d.Testimonials.Clients)
	if d.Projects.Items != nil {
		out.Projects.Items = make([]Project, len(d.Projects.Items))
		for i, item := range d.Projects.Items {
			out.Projects.Items[i] = item.clone()
		}
	}
	return out
}

func (p Project) clone() Project {
	out := p
	out.Technologies = cloneSlice(p.Technologies)
	out.AdditionalImages = cloneSlice(p.AdditionalImages)
	if p.Testimonial != nil {
		t := *p.Testimonial
		out.Testimonial = &t
	}
	return out
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}

// SplitList turns a comma-joined text field back into a list. Segments are
// trimmed and empty segments dropped.
func SplitList(text string) []string {
	parts := strings.Split(text, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}

// JoinList renders a list into the single text field the editor shows.
func JoinList(items []string) string {
	return strings.Join(items, ", ")
}
