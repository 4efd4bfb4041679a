package content

// Default returns the document seeded when no stored copy exists yet.
func Default() Document {
	return Document{
		Hero: Hero{
			Title:    "Automation and controls engineering you can rely on",
			Subtitle: "Industrial automation, system integration and support for manufacturers of every size.",
		},
		Services: Services{
			IntroTitle: "What we do",
			IntroText:  "From a single machine retrofit to a plant-wide control system, we design, build and support automation that keeps production moving.",
			Cards: []ServiceCard{
				{Title: "PLC programming", Description: "Design, programming and commissioning of PLC-based control systems."},
				{Title: "SCADA and HMI", Description: "Operator interfaces and supervisory systems that make plant data usable."},
				{Title: "System integration", Description: "Connecting machines, networks and business systems into one reliable process."},
				{Title: "Support and maintenance", Description: "Troubleshooting, upgrades and on-call support for existing installations."},
			},
		},
		Mission: Mission{
			MainTitle:      "Our mission",
			SubTitle:       "Practical engineering, delivered honestly",
			IntroParagraph: "We believe automation should make work simpler, safer and more predictable.",
			Points: []MissionPoint{
				{Title: "Reliability", Text: "Systems that run for years without surprises."},
				{Title: "Transparency", Text: "Clear documentation and no lock-in."},
				{Title: "Partnership", Text: "We stay involved long after commissioning."},
			},
		},
		Skills: Skills{
			Hardware: []Skill{{Name: "Siemens S7"}, {Name: "Allen-Bradley"}, {Name: "Schneider Electric"}},
			Software: []Skill{{Name: "TIA Portal"}, {Name: "Studio 5000"}, {Name: "Ignition SCADA"}},
			Tools:    []Skill{{Name: "EPLAN"}, {Name: "Wireshark"}, {Name: "Git"}},
			Certifications: []Certification{
				{Title: "Certified Automation Professional", Organization: "ISA", ID: "CAP-0000"},
			},
		},
		Projects: Projects{
			Items: []Project{
				{
					Title:        "Packaging line modernization",
					Description:  "Replacement of a legacy relay panel with a networked PLC system.",
					Technologies: []string{"PLC", "SCADA"},
					ImageSrc:     "/images/projects/packaging-line.jpg",
					Challenge:    "Frequent unplanned stops and no production data.",
					Solution:     "New PLC control with an HMI and line-level data collection.",
					Results:      "Downtime reduced and real-time output visible to supervisors.",
				},
			},
		},
		Testimonials: Testimonials{
			Items: []Testimonial{
				{
					Quote:    "They understood our process from day one and delivered on schedule.",
					Name:     "Jordan Lee",
					Position: "Plant Manager",
					Company:  "Example Manufacturing",
					Initials: "JL",
				},
			},
			Clients: []Client{{Name: "Example Manufacturing"}},
		},
		Contact: Contact{
			Title: "Let's talk about your project",
			Text:  "Tell us what you are working on and we will get back to you within one business day.",
		},
	}
}
