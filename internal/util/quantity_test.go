package util

import "testing"

func TestParseMemory(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{in: "", want: 0},
		{in: "512M", want: 512},
		{in: "512Mi", want: 512},
		{in: "2G", want: 2048},
		{in: "1.5GiB", want: 1536},
		{in: " 4gb ", want: 4096},
		{in: "2048K", want: 2},
		{in: "1T", want: 1024 * 1024},
		{in: "1073741824", want: 1024},
		{in: "1073741824B", want: 1024},
		{in: "G", wantErr: true},
		{in: "12Q", wantErr: true},
		{in: "1.2.3G", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMemory(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseMemory(%q) = %d, expected error", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseMemory(%q) error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseMemory(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}
