package query

import (
	"context"
	"fmt"

	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/attendance"
	"github.com/LitoFortuna/XDS-ERP-sub000/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET WEEKLY SCHEDULE QUERY
// ══════════════════════════════════════════════════════════════════════════════

// ScheduleClassDTO is a class in the weekly grid.
type ScheduleClassDTO struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Instructor string   `json:"instructor,omitempty"`
	Days       []string `json:"days"`
	StartTime  string   `json:"start_time"`
	EndTime    string   `json:"end_time"`
	MonthlyFee string   `json:"monthly_fee"`
	Capacity   int      `json:"capacity"`
	Enrolled   int      `json:"enrolled"`

	// Available is -1 for classes without a capacity limit.
	Available int  `json:"available"`
	Full      bool `json:"full"`
}

// ScheduleDayDTO is one weekday column.
type ScheduleDayDTO struct {
	Weekday int                `json:"weekday"`
	Name    string             `json:"name"`
	Classes []ScheduleClassDTO `json:"classes"`
}

// WeeklyScheduleDTO is the grid, Monday first.
type WeeklyScheduleDTO struct {
	Days []ScheduleDayDTO `json:"days"`
}

// GetWeeklyScheduleHandler builds the weekly grid with occupancy.
type GetWeeklyScheduleHandler struct {
	classRepo   attendance.ClassRepository
	studentRepo student.Repository
}

// NewGetWeeklyScheduleHandler creates the handler.
func NewGetWeeklyScheduleHandler(classRepo attendance.ClassRepository, studentRepo student.Repository) *GetWeeklyScheduleHandler {
	return &GetWeeklyScheduleHandler{classRepo: classRepo, studentRepo: studentRepo}
}

// Handle runs the query.
func (h *GetWeeklyScheduleHandler) Handle(ctx context.Context) (*WeeklyScheduleDTO, error) {
	classes, err := h.classRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("get_weekly_schedule: list classes: %w", err)
	}
	students, err := h.studentRepo.List(ctx, student.DefaultListOptions())
	if err != nil {
		return nil, fmt.Errorf("get_weekly_schedule: list students: %w", err)
	}

	occupancy := make(map[string]attendance.OccupancyInfo, len(classes))
	for _, c := range classes {
		occupancy[c.ID] = attendance.Occupancy(c, students)
	}

	grid := attendance.WeeklyGrid(classes)
	dto := &WeeklyScheduleDTO{Days: make([]ScheduleDayDTO, 0, len(grid))}
	for _, day := range grid {
		col := ScheduleDayDTO{
			Weekday: int(day.Weekday),
			Name:    attendance.WeekdayName(day.Weekday),
			Classes: make([]ScheduleClassDTO, 0, len(day.Classes)),
		}
		for _, c := range day.Classes {
			occ := occupancy[c.ID]
			col.Classes = append(col.Classes, ScheduleClassDTO{
				ID:         c.ID,
				Name:       c.Name,
				Instructor: c.Instructor,
				Days:       c.DayNames(),
				StartTime:  c.StartTime.String(),
				EndTime:    c.EndTime.String(),
				MonthlyFee: money(c.MonthlyFee),
				Capacity:   c.Capacity,
				Enrolled:   occ.Enrolled,
				Available:  occ.Available(),
				Full:       occ.Full,
			})
		}
		dto.Days = append(dto.Days, col)
	}
	return dto, nil
}
