// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package service

import (
	"math"
	"slices"
	"time"

	"github.com/itqan-platform/session-service/internal/domain/models"
)

// AttendancePolicy holds the academy tolerances used to classify a participant.
type AttendancePolicy struct {
	LateTolerance              time.Duration
	CompletionThresholdPercent int
}

// PolicyFromSettings derives the classification policy from academy settings.
func PolicyFromSettings(settings models.AcademySettings) AttendancePolicy {
	settings = settings.WithDefaults()
	return AttendancePolicy{
		LateTolerance:              time.Duration(settings.LateToleranceMinutes) * time.Minute,
		CompletionThresholdPercent: settings.CompletionThresholdPercent,
	}
}

// AttendanceResult is the outcome of one calculator pass.
type AttendanceResult struct {
	ParticipantID        string                  `json:"participant_id"`
	Spans                []models.Interval       `json:"spans"`
	TotalDurationMinutes int                     `json:"total_duration_minutes"`
	Percentage           int                     `json:"attendance_percentage"`
	Status               models.AttendanceStatus `json:"attendance_status"`
	InMeeting            bool                    `json:"in_meeting"`
}

// CalculateAttendance merges the participant's intervals inside the scheduled window and
// classifies the result. Intervals still open are closed at endedAt.
//
// Precedence: never joined or nothing attended inside the window is ABSENT; a first join
// after scheduled_at plus the late tolerance is LATE; leaving before the end with less
// than the completion threshold is LEFT; everything else is ATTENDED.
func CalculateAttendance(w models.SessionWindow, row *models.MeetingAttendance, endedAt time.Time, policy AttendancePolicy) AttendanceResult {
	res := AttendanceResult{
		ParticipantID: row.ParticipantID,
		Status:        models.AttendanceStatusAbsent,
		InMeeting:     row.InMeeting(),
	}

	spans := mergeSpans(clipIntervals(row.Intervals, w.ScheduledAt, w.ScheduledEnd(), endedAt))
	var total time.Duration
	for _, span := range spans {
		total += span.LeftAt.Sub(span.JoinedAt)
	}
	res.Spans = spans
	res.TotalDurationMinutes = int(total / time.Minute)
	res.Percentage = percentage(res.TotalDurationMinutes, w.Duration)

	switch {
	case row.FirstJoinTime == nil || res.TotalDurationMinutes == 0:
		res.Status = models.AttendanceStatusAbsent
	case row.FirstJoinTime.After(w.ScheduledAt.Add(policy.LateTolerance)):
		res.Status = models.AttendanceStatusLate
	case !stayedUntil(row.Intervals, minTime(endedAt, w.ScheduledEnd())) && res.Percentage < policy.CompletionThresholdPercent:
		res.Status = models.AttendanceStatusLeft
	default:
		res.Status = models.AttendanceStatusAttended
	}
	return res
}

// clipIntervals closes open intervals at endedAt and clips every interval to [from, to].
// Empty results are dropped.
func clipIntervals(intervals []models.Interval, from, to, endedAt time.Time) []models.Interval {
	out := make([]models.Interval, 0, len(intervals))
	for _, in := range intervals {
		start := in.JoinedAt
		end := in.End(endedAt)
		if end.After(endedAt) {
			end = endedAt
		}
		if start.Before(from) {
			start = from
		}
		if end.After(to) {
			end = to
		}
		if !end.After(start) {
			continue
		}
		out = append(out, models.Interval{JoinedAt: start, LeftAt: &end})
	}
	return out
}

// mergeSpans returns the union of closed intervals as sorted, non-overlapping spans.
func mergeSpans(intervals []models.Interval) []models.Interval {
	if len(intervals) == 0 {
		return nil
	}
	slices.SortFunc(intervals, func(a, b models.Interval) int {
		return a.JoinedAt.Compare(b.JoinedAt)
	})
	merged := []models.Interval{intervals[0]}
	for _, in := range intervals[1:] {
		last := &merged[len(merged)-1]
		if in.JoinedAt.After(*last.LeftAt) {
			merged = append(merged, in)
			continue
		}
		if in.LeftAt.After(*last.LeftAt) {
			end := *in.LeftAt
			last.LeftAt = &end
		}
	}
	return merged
}

// percentage is round(minutes / duration * 100) clamped to [0, 100].
func percentage(minutes int, duration time.Duration) int {
	planned := duration.Minutes()
	if planned <= 0 {
		return 0
	}
	p := int(math.Round(float64(minutes) / planned * 100))
	return max(0, min(100, p))
}

// stayedUntil reports whether some interval is still open at, or closes no earlier
// than, instant.
func stayedUntil(intervals []models.Interval, instant time.Time) bool {
	return slices.ContainsFunc(intervals, func(in models.Interval) bool {
		return in.Open() || !in.LeftAt.Before(instant)
	})
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

// sessionVerdict aggregates participant verdicts into the session attendance status.
// Only student rows count; the best student verdict wins and no students means ABSENT.
func sessionVerdict(results map[string]models.AttendanceStatus, rows []*models.MeetingAttendance) models.AttendanceStatus {
	rank := map[models.AttendanceStatus]int{
		models.AttendanceStatusAbsent:   0,
		models.AttendanceStatusLeft:     1,
		models.AttendanceStatusLate:     2,
		models.AttendanceStatusAttended: 3,
	}
	verdict := models.AttendanceStatusAbsent
	for _, row := range rows {
		if !countsTowardsSession(row.Role) {
			continue
		}
		status, ok := results[row.ParticipantID]
		if !ok {
			continue
		}
		if rank[status] > rank[verdict] {
			verdict = status
		}
	}
	return verdict
}

// countsTowardsSession reports whether a participant's attendance decides whether the
// session took place. Rows without a known role are treated as students.
func countsTowardsSession(role models.ParticipantRole) bool {
	switch role {
	case models.ParticipantRoleTeacher, models.ParticipantRoleSupervisor, models.ParticipantRoleAdmin:
		return false
	}
	return true
}
