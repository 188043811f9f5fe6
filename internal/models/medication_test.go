package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScheduleClock(t *testing.T) {
	tests := []struct {
		name     string
		schedule string
		hour     int
		minute   int
	}{
		{"zero padded", "09:00", 9, 0},
		{"unpadded hour", "9:00", 9, 0},
		{"evening", "21:30", 21, 30},
		{"empty falls back", "", 9, 0},
		{"garbage falls back", "soon", 9, 0},
		{"out of range falls back", "25:99", 9, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			med := MedicationSetting{ScheduleTime: tt.schedule}
			hour, minute := med.ScheduleClock()
			assert.Equal(t, tt.hour, hour)
			assert.Equal(t, tt.minute, minute)
		})
	}
}

func TestValidScheduleTime(t *testing.T) {
	assert.True(t, ValidScheduleTime("09:00"))
	assert.True(t, ValidScheduleTime("9:00"))
	assert.True(t, ValidScheduleTime("23:59"))
	assert.False(t, ValidScheduleTime(""))
	assert.False(t, ValidScheduleTime("24:00"))
	assert.False(t, ValidScheduleTime("nine"))
}
