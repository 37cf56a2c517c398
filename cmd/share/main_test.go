package main

import (
	"strings"
	"testing"

	"github.com/dvloznov/blobshare/internal/services"
)

func TestPrepareInvocations(t *testing.T) {
	svc, err := services.Lookup(services.Azure)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}

	tests := []struct {
		name       string
		files      []string
		format     string
		fileName   string
		wantFormat []string
		wantName   []string
		wantErr    string
	}{
		{
			name:       "derived from path",
			files:      []string{"/tmp/Kap 2025.GIF", "clip.mp4"},
			wantFormat: []string{"gif", "mp4"},
			wantName:   []string{"Kap 2025.GIF", "clip.mp4"},
		},
		{
			name:       "explicit format and name",
			files:      []string{"/tmp/recording"},
			format:     "webm",
			fileName:   "demo.webm",
			wantFormat: []string{"webm"},
			wantName:   []string{"demo.webm"},
		},
		{
			name:    "unsupported format",
			files:   []string{"a.gif", "notes.txt"},
			wantErr: `does not support format "txt"`,
		},
		{
			name:    "no extension",
			files:   []string{"recording"},
			wantErr: `does not support format ""`,
		},
		{
			name:     "name with several files",
			files:    []string{"a.gif", "b.gif"},
			fileName: "x.gif",
			wantErr:  "single file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := prepareInvocations(svc, tt.files, tt.format, tt.fileName)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("prepareInvocations: %v", err)
			}
			if len(got) != len(tt.files) {
				t.Fatalf("got %d invocations", len(got))
			}
			for i, inv := range got {
				if inv.Path != tt.files[i] || inv.Format != tt.wantFormat[i] || inv.DefaultFileName != tt.wantName[i] {
					t.Errorf("invocation %d = %+v", i, inv)
				}
			}
		})
	}
}
