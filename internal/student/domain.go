// Package student serves course schedule and financial aid data from the integration database.
package student

// Config carries the links rendered alongside student data.
type Config struct {
	HelpURL        string
	PaymentURL     string
	ApplyURL       string
	ViewDetailsURL string
}

// DefaultConfig holds the links used when none are configured.
var DefaultConfig = Config{
	HelpURL:        "http://helpme.edu",
	PaymentURL:     "https://studentaid.edu/payment",
	ApplyURL:       "https://studentaid.edu/sa/fafsa",
	ViewDetailsURL: "https://studentaid.edu/details",
}

func (c Config) withDefaults() Config {
	if c.HelpURL == "" {
		c.HelpURL = DefaultConfig.HelpURL
	}
	if c.PaymentURL == "" {
		c.PaymentURL = DefaultConfig.PaymentURL
	}
	if c.ApplyURL == "" {
		c.ApplyURL = DefaultConfig.ApplyURL
	}
	if c.ViewDetailsURL == "" {
		c.ViewDetailsURL = DefaultConfig.ViewDetailsURL
	}
	return c
}

// Section is one class meeting a student is enrolled or wait-listed in.
type Section struct {
	WaitingList bool     `json:"waitingList"`
	College     string   `json:"college"`
	Title       string   `json:"title"`
	Credit      *float64 `json:"credit"`
	Dates       string   `json:"dates"`
	Type        string   `json:"type"`
	Day         string   `json:"day"`
	Time        string   `json:"time"`
	Room        string   `json:"room"`
	Instructor  string   `json:"instructor"`
}

// Course groups the sections sharing heading, title, credit and dates.
type Course struct {
	Heading  string    `json:"heading"`
	Title    string    `json:"title"`
	Credit   *float64  `json:"credit"`
	Dates    string    `json:"dates"`
	Sections []Section `json:"sections"`
	Waitlist bool      `json:"waitlist"`
}

// Schedule is the /courses payload.
type Schedule struct {
	Waitlisted int      `json:"waitlisted"`
	HelpURL    string   `json:"helpUrl"`
	Courses    []Course `json:"courses,omitzero"`
}

// Award is a refined financial aid record.
type Award struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
}

// Warning is a notice block shown with a section.
type Warning struct {
	Message string `json:"message"`
	URL     string `json:"url"`
	Image   string `json:"image"`
}

// WarningImage is the icon rendered with every warning.
const WarningImage = "/uPortal/media/images/information-icon.svg"

// Payments is the payments block of the /finAid payload.
type Payments struct {
	PaymentURL string   `json:"paymentUrl,omitempty"`
	Payments   []Award  `json:"payments,omitempty"`
	Warning    *Warning `json:"warning,omitempty"`
}

// FinancialAid is the financial aid block of the /finAid payload.
type FinancialAid struct {
	ViewDetailsURL string   `json:"viewDetailsUrl,omitempty"`
	ApplyURL       string   `json:"applyUrl,omitempty"`
	Accounts       []Award  `json:"accounts,omitempty"`
	Warning        *Warning `json:"warning,omitempty"`
}

// Aid is the /finAid payload.
type Aid struct {
	Payments     Payments     `json:"payments"`
	FinancialAid FinancialAid `json:"financialAid"`
}
