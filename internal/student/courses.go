package student

import (
	"cmp"
	"slices"
	"strings"

	"github.com/campusportal/portal-rest/internal/integration"
)

// CoursesQuery selects the section rows of one student.
const CoursesQuery = "select * from StudentSections where StudentID = $1"

// SectionFrom maps a StudentSections row.
func SectionFrom(rec integration.Record) Section {
	s := Section{
		WaitingList: rec.YesNo("WAITLIST"),
		College:     rec.StringOr("COLLEGE", ""),
		Title:       rec.StringOr("SECTIONNAME", "No Section") + " " + rec.StringOr("SHORTTITLE", "No Title"),
		Dates:       joinPair(rec, "STARTDATE", "ENDDATE", " to ", "No dates specified"),
		Time:        joinPair(rec, "STARTTIME", "ENDTIME", "-", "ARR"),
		Type:        rec.StringOr("CSM_INSTR_METHOD", "UNK"),
		Day:         rec.StringOr("WEEKDAYS", "--"),
		Instructor:  rec.StringOr("INSTRUCTOR", "--"),
		Room:        strings.TrimSpace(rec.StringOr("BUILDING", "") + " " + rec.StringOr("ROOM", "")),
	}
	if s.Room == "" {
		s.Room = "--"
	}
	if credit, ok := rec.Number("CREDIT"); ok {
		s.Credit = &credit
	}
	return s
}

func joinPair(rec integration.Record, first, second, sep, missing string) string {
	a, b := rec.StringOr(first, ""), rec.StringOr(second, "")
	switch {
	case a != "" && b != "":
		return a + sep + b
	case a != "":
		return a
	case b != "":
		return b
	default:
		return missing
	}
}

type courseKey struct {
	heading, title, dates string
	credit                float64
	hasCredit             bool
}

func keyOf(s Section) courseKey {
	k := courseKey{heading: s.College, title: s.Title, dates: s.Dates}
	if s.Credit != nil {
		k.credit, k.hasCredit = *s.Credit, true
	}
	return k
}

// GroupCourses folds sections into courses ordered by heading then title. Sections keep
// their row order within a course.
func GroupCourses(sections []Section) []Course {
	index := make(map[courseKey]int)
	courses := make([]Course, 0)
	for _, s := range sections {
		k := keyOf(s)
		i, ok := index[k]
		if !ok {
			i = len(courses)
			index[k] = i
			courses = append(courses, Course{Heading: s.College, Title: s.Title, Credit: s.Credit, Dates: s.Dates})
		}
		courses[i].Sections = append(courses[i].Sections, s)
		courses[i].Waitlist = courses[i].Waitlist || s.WaitingList
	}
	slices.SortStableFunc(courses, func(a, b Course) int {
		return cmp.Or(cmp.Compare(a.Heading, b.Heading), cmp.Compare(a.Title, b.Title))
	})
	return courses
}

// CountWaitlisted counts wait-listed sections.
func CountWaitlisted(sections []Section) int {
	n := 0
	for _, s := range sections {
		if s.WaitingList {
			n++
		}
	}
	return n
}
