package model

import (
	"testing"

	"gotest.tools/v3/assert"
)

func TestParseSurface(t *testing.T) {
	tests := []struct {
		name    string
		arg     string
		want    Surface
		wantErr bool
	}{
		{name: "paved", arg: "paved", want: SurfacePaved},
		{name: "snow", arg: "snow", want: SurfaceSnow},
		{name: "gravel", arg: "gravel", want: SurfaceGravel},
		{name: "mixed", arg: "mixed", want: SurfaceMixed},
		{name: "unknown", arg: "ice", wantErr: true},
		{name: "case sensitive", arg: "Snow", wantErr: true},
		{name: "empty", arg: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSurface(tt.arg)
			if tt.wantErr {
				assert.Assert(t, err != nil)
				assert.Assert(t, !Surface(tt.arg).Valid())
				return
			}
			assert.NilError(t, err)
			assert.Equal(t, got, tt.want)
			assert.Assert(t, got.Valid())
		})
	}
}
