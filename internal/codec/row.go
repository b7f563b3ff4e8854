// Package codec maps participants and their leads to and from a fixed-width
// spreadsheet row.
//
// Leads are not stored as separate rows. Each of the seven lead fields owns a
// column (E–K) and a participant's leads are packed into those cells as
// newline-separated lists: line i of every list belongs to lead i. Every
// append must extend all seven lists together or the row's history becomes
// misaligned for good.
package codec

import (
	"strconv"
	"strings"

	"github.com/noah-isme/referral-bot/internal/models"
)

// Column indexes (0-based, A=0). The order is the wire contract with the sheet.
const (
	ColReserved = iota
	ColParticipantID
	ColName
	ColCohort
	ColChildName
	ColAge
	ColGrade
	ColContactHandle
	ColPhone
	ColGuardianName
	ColGuardianPhone
	ColPoints
	ColStatus
	ColTimestamp
	ColProgram
	ColComment
	ColChatID
	ColExternalID

	// Width is the number of columns in a row (A–R).
	Width
)

// FirstLeadCol and LastLeadCol bound the packed lead columns (E–K).
const (
	FirstLeadCol = ColChildName
	LastLeadCol  = ColGuardianPhone
	leadFields   = LastLeadCol - FirstLeadCol + 1
)

// Delimiter separates packed values inside a lead cell.
const Delimiter = "\n"

// Pad returns a copy of cells with exactly Width entries. Short rows, which
// the Sheets API returns when trailing cells are empty, gain empty strings.
func Pad(cells []string) []string {
	out := make([]string, Width)
	copy(out, cells)
	return out
}

// Decode reads a participant and all of its leads from a raw row.
func Decode(cells []string) models.ParticipantRecord {
	row := Pad(cells)
	return models.ParticipantRecord{
		Participant: models.Participant{
			ID:         atoi(row[ColParticipantID]),
			Name:       row[ColName],
			Cohort:     atoi(row[ColCohort]),
			Points:     atoi(row[ColPoints]),
			Status:     row[ColStatus],
			Timestamp:  row[ColTimestamp],
			Comment:    row[ColComment],
			ChatID:     strings.TrimSpace(row[ColChatID]),
			ExternalID: strings.TrimSpace(row[ColExternalID]),
		},
		Reserved: row[ColReserved],
		Leads:    UnpackLeads(row),
	}
}

// EncodeParticipant builds a fresh row for a participant with no leads.
// Column A stays empty.
func EncodeParticipant(p models.Participant) []string {
	row := make([]string, Width)
	row[ColParticipantID] = strconv.Itoa(p.ID)
	row[ColName] = clean(p.Name)
	row[ColCohort] = strconv.Itoa(p.Cohort)
	if p.Points != 0 {
		row[ColPoints] = strconv.Itoa(p.Points)
	}
	row[ColStatus] = p.Status
	row[ColTimestamp] = p.Timestamp
	row[ColComment] = p.Comment
	row[ColChatID] = p.ChatID
	row[ColExternalID] = p.ExternalID
	return row
}

// LeadValues returns the seven packed fields of a lead in column order.
func LeadValues(l models.Lead) []string {
	return []string{
		clean(l.ChildName),
		strconv.Itoa(l.Age),
		strconv.Itoa(l.Grade),
		clean(l.ContactHandle),
		clean(l.Phone),
		clean(l.GuardianName),
		clean(l.GuardianPhone),
	}
}

// AppendLead returns a padded copy of cells with lead appended to every packed
// list. An empty cell receives the value, a non-empty one gets it after a
// line break. Lists shorter than the row's lead count are padded first so
// that an empty value never shifts later leads onto the wrong line. The
// program column (O) is kept aligned the same way.
func AppendLead(cells []string, lead models.Lead) []string {
	row := Pad(cells)
	count := leadCount(row)

	for i, value := range LeadValues(lead) {
		col := FirstLeadCol + i
		row[col] = appendPacked(row[col], count, value)
	}
	row[ColProgram] = appendPacked(row[ColProgram], count, string(lead.ProgramType))
	return row
}

// UnpackLeads zips the packed lists positionally. Lists of unequal length are
// tolerated: missing entries decode as empty values.
func UnpackLeads(cells []string) []models.Lead {
	row := Pad(cells)
	lists := make([][]string, leadFields)
	longest := 0
	for i := range lists {
		lists[i] = split(row[FirstLeadCol+i])
		if len(lists[i]) > longest {
			longest = len(lists[i])
		}
	}
	programs := split(row[ColProgram])

	leads := make([]models.Lead, 0, longest)
	for n := 0; n < longest; n++ {
		leads = append(leads, models.Lead{
			ChildName:     at(lists[0], n),
			Age:           atoi(at(lists[1], n)),
			Grade:         atoi(at(lists[2], n)),
			ContactHandle: at(lists[3], n),
			Phone:         at(lists[4], n),
			GuardianName:  at(lists[5], n),
			GuardianPhone: at(lists[6], n),
			ProgramType:   models.ProgramType(at(programs, n)),
		})
	}
	return leads
}

func leadCount(row []string) int {
	longest := 0
	for col := FirstLeadCol; col <= LastLeadCol; col++ {
		if n := len(split(row[col])); n > longest {
			longest = n
		}
	}
	return longest
}

func appendPacked(cell string, count int, value string) string {
	list := split(cell)
	for len(list) < count {
		list = append(list, "")
	}
	return strings.Join(append(list, value), Delimiter)
}

func split(cell string) []string {
	if cell == "" {
		return nil
	}
	return strings.Split(cell, Delimiter)
}

func at(list []string, i int) string {
	if i < len(list) {
		return list[i]
	}
	return ""
}

func atoi(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	return n
}

// clean flattens line breaks so a value can never split a packed cell.
func clean(v string) string {
	v = strings.ReplaceAll(v, "\r\n", " ")
	v = strings.ReplaceAll(v, "\r", " ")
	return strings.ReplaceAll(v, Delimiter, " ")
}
