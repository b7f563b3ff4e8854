package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/referral-bot/internal/models"
)

func sampleLead(name string) models.Lead {
	return models.Lead{
		ChildName:     name,
		Age:           14,
		Grade:         8,
		ContactHandle: "@" + name,
		Phone:         "+79991234567",
		GuardianName:  "Parent of " + name,
		GuardianPhone: "+79997654321",
		ProgramType:   models.ProgramCampDO,
	}
}

func TestColumnLayout(t *testing.T) {
	assert.Equal(t, 18, Width)
	assert.Equal(t, 1, ColParticipantID)
	assert.Equal(t, 4, FirstLeadCol)
	assert.Equal(t, 10, LastLeadCol)
	assert.Equal(t, 11, ColPoints)
	assert.Equal(t, 12, ColStatus)
	assert.Equal(t, 14, ColProgram)
	assert.Equal(t, 16, ColChatID)
	assert.Equal(t, 17, ColExternalID)
}

func TestPadNeverShrinksBelowWidth(t *testing.T) {
	assert.Len(t, Pad(nil), Width)
	assert.Len(t, Pad([]string{"a", "b"}), Width)

	in := []string{"a"}
	out := Pad(in)
	out[0] = "changed"
	assert.Equal(t, "a", in[0])
}

func TestEncodeParticipantLayout(t *testing.T) {
	row := EncodeParticipant(models.Participant{
		ID:         7,
		Name:       "Иванов Иван",
		Cohort:     2,
		Timestamp:  "2024-06-01 10:00:00",
		ChatID:     "100",
		ExternalID: "200",
	})

	require.Len(t, row, Width)
	assert.Equal(t, "", row[ColReserved])
	assert.Equal(t, "7", row[ColParticipantID])
	assert.Equal(t, "Иванов Иван", row[ColName])
	assert.Equal(t, "2", row[ColCohort])
	for col := FirstLeadCol; col <= LastLeadCol; col++ {
		assert.Empty(t, row[col])
	}
	assert.Equal(t, "", row[ColPoints])
	assert.Equal(t, "2024-06-01 10:00:00", row[ColTimestamp])
	assert.Equal(t, "100", row[ColChatID])
	assert.Equal(t, "200", row[ColExternalID])
}

func TestDecodeShortRow(t *testing.T) {
	rec := Decode([]string{"", "3", "Ann", "4"})
	assert.Equal(t, 3, rec.ID)
	assert.Equal(t, "Ann", rec.Name)
	assert.Equal(t, 4, rec.Cohort)
	assert.Equal(t, 0, rec.Points)
	assert.Empty(t, rec.Leads)
	assert.Empty(t, rec.ChatID)
}

func TestDecodeToleratesGarbageNumbers(t *testing.T) {
	row := Pad([]string{"", " 12 ", "Ann", "x"})
	row[ColPoints] = "ten"
	rec := Decode(row)
	assert.Equal(t, 12, rec.ID)
	assert.Equal(t, 0, rec.Cohort)
	assert.Equal(t, 0, rec.Points)
}

func TestAppendLeadToEmptyRowSetsValues(t *testing.T) {
	base := EncodeParticipant(models.Participant{ID: 1, Name: "Ann", Cohort: 1})
	row := AppendLead(base, sampleLead("kid"))

	assert.Equal(t, []string{"kid", "14", "8", "@kid", "+79991234567", "Parent of kid", "+79997654321"}, row[FirstLeadCol:LastLeadCol+1])
	assert.Equal(t, "camp_do", row[ColProgram])
	assert.Equal(t, "", row[ColPoints])
	assert.Equal(t, "", row[ColStatus])
}

func TestAppendLeadConcatenatesWithLineBreak(t *testing.T) {
	row := AppendLead(nil, sampleLead("one"))
	two := sampleLead("two")
	two.ProgramType = models.ProgramCollege
	row = AppendLead(row, two)

	assert.Equal(t, "one\ntwo", row[ColChildName])
	assert.Equal(t, "14\n14", row[ColAge])
	assert.Equal(t, "@one\n@two", row[ColContactHandle])
	assert.Equal(t, "camp_do\ncollege", row[ColProgram])
}

func TestAppendLeadDoesNotTouchOtherColumns(t *testing.T) {
	base := Pad([]string{"marker", "5", "Ann", "3"})
	base[ColPoints] = "15"
	base[ColStatus] = "Проверено"
	base[ColComment] = "vip"
	base[ColChatID] = "100"
	base[ColExternalID] = "200"

	row := AppendLead(base, sampleLead("kid"))
	for _, col := range []int{ColReserved, ColParticipantID, ColName, ColCohort, ColPoints, ColStatus, ColTimestamp, ColComment, ColChatID, ColExternalID} {
		assert.Equal(t, base[col], row[col], "column %d", col)
	}
	assert.Equal(t, "", base[ColChildName], "input must not be mutated")
}

func TestLeadRoundTripKeepsOrderAndAttribution(t *testing.T) {
	l1 := models.Lead{
		ChildName:     "Анна-Мария O'Neil; \"Ann\"",
		Age:           11,
		Grade:         5,
		ContactHandle: "@ann_1",
		Phone:         "+79990000001",
		GuardianName:  "Мама, Ольга",
		GuardianPhone: "+79990000002",
		ProgramType:   models.ProgramCampDO,
	}
	l2 := models.Lead{
		ChildName:     "Bob\ttab",
		Age:           15,
		Grade:         9,
		ContactHandle: "Не указан",
		Phone:         "+79990000003",
		GuardianName:  "Dad | pipe",
		GuardianPhone: "+79990000004",
		ProgramType:   models.ProgramCollege,
	}

	row := AppendLead(EncodeParticipant(models.Participant{ID: 1, Name: "P", Cohort: 1}), l1)
	row = AppendLead(row, l2)

	assert.Equal(t, []models.Lead{l1, l2}, Decode(row).Leads)
}

func TestEmbeddedLineBreaksAreFlattened(t *testing.T) {
	lead := sampleLead("kid")
	lead.GuardianName = "Line one\nLine two\r\nthree"

	row := AppendLead(nil, lead)
	row = AppendLead(row, sampleLead("second"))

	leads := UnpackLeads(row)
	require.Len(t, leads, 2)
	assert.Equal(t, "Line one Line two three", leads[0].GuardianName)
	assert.Equal(t, "second", leads[1].ChildName)
	assert.Equal(t, "Parent of second", leads[1].GuardianName)
}

func TestEmptyFieldValueKeepsAlignment(t *testing.T) {
	first := sampleLead("one")
	first.GuardianName = ""
	row := AppendLead(nil, first)
	row = AppendLead(row, sampleLead("two"))
	row = AppendLead(row, sampleLead("three"))

	leads := UnpackLeads(row)
	require.Len(t, leads, 3)
	assert.Equal(t, "", leads[0].GuardianName)
	assert.Equal(t, "Parent of two", leads[1].GuardianName)
	assert.Equal(t, "Parent of three", leads[2].GuardianName)
}

func TestLegacyRowWithoutProgramColumnStaysAligned(t *testing.T) {
	row := Pad(nil)
	row[ColChildName] = "a\nb"
	row[ColAge] = "10\n11"
	row[ColGrade] = "4\n5"
	row[ColContactHandle] = "@a\n@b"
	row[ColPhone] = "1\n2"
	row[ColGuardianName] = "pa\npb"
	row[ColGuardianPhone] = "3\n4"

	row = AppendLead(row, sampleLead("c"))
	leads := UnpackLeads(row)
	require.Len(t, leads, 3)
	assert.Equal(t, models.ProgramType(""), leads[0].ProgramType)
	assert.Equal(t, models.ProgramType(""), leads[1].ProgramType)
	assert.Equal(t, models.ProgramCampDO, leads[2].ProgramType)
	assert.Equal(t, "c", leads[2].ChildName)
}

func TestUnpackToleratesMisalignedLists(t *testing.T) {
	row := Pad(nil)
	row[ColChildName] = "a\nb\nc"
	row[ColAge] = "10\n11"
	row[ColGrade] = "4"
	row[ColGuardianPhone] = "x\ny\nz"

	leads := UnpackLeads(row)
	require.Len(t, leads, 3)
	assert.Equal(t, models.Lead{ChildName: "c", GuardianPhone: "z"}, leads[2])
	assert.Equal(t, 11, leads[1].Age)
	assert.Equal(t, 0, leads[1].Grade)
	assert.Equal(t, "", leads[0].Phone)
}

func TestUnpackEmptyRow(t *testing.T) {
	assert.Empty(t, UnpackLeads(nil))
	assert.Empty(t, UnpackLeads(EncodeParticipant(models.Participant{ID: 1})))
}
