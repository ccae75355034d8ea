package syntax

import (
	"reflect"
	"testing"
)

func TestParseAreaString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []int
		wantErr  bool
	}{
		{
			name:     "comma separated",
			input:    "1,3,4",
			expected: []int{1, 3, 4},
		},
		{
			name:     "space separated",
			input:    "4 2 1",
			expected: []int{1, 2, 4},
		},
		{
			name:     "duplicates collapse",
			input:    "1,1,2",
			expected: []int{1, 2},
		},
		{
			name:    "invalid number",
			input:   "1,x",
			wantErr: true,
		},
		{
			name:    "zero is invalid",
			input:   "0",
			wantErr: true,
		},
		{
			name:    "empty input",
			input:   "   ",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAreaString(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Fatalf("got %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestAreasToBitmap(t *testing.T) {
	tests := []struct {
		name       string
		areas      []int
		bitmapSize int
		expected   []byte
		wantErr    bool
	}{
		{
			name:       "single area in first byte",
			areas:      []int{1},
			bitmapSize: 1,
			expected:   []byte{0x01},
		},
		{
			name:       "areas across byte boundary",
			areas:      []int{1, 9},
			bitmapSize: 2,
			expected:   []byte{0x01, 0x01},
		},
		{
			name:       "out of range",
			areas:      []int{20},
			bitmapSize: 1,
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AreasToBitmap(tt.areas, tt.bitmapSize)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Fatalf("got %v, want %v", got, tt.expected)
			}
		})
	}
}
