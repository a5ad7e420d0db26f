package track

import "testing"

func TestValidateJobJSON(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr bool
	}{
		{
			name: "full record",
			data: `{"id":"j1","task":"ANALYZE","status":"SUCCEEDED","result_url":"https://r","session_id":"s","user_id":"u"}`,
		},
		{
			name: "minimal record",
			data: `{"id":"j1","status":"STARTED"}`,
		},
		{
			name: "null result url",
			data: `{"id":"j1","status":"STARTED","result_url":null}`,
		},
		{
			name:    "missing status",
			data:    `{"id":"j1"}`,
			wantErr: true,
		},
		{
			name:    "unknown status value",
			data:    `{"id":"j1","status":"PAUSED"}`,
			wantErr: true,
		},
		{
			name:    "empty id",
			data:    `{"id":"","status":"STARTED"}`,
			wantErr: true,
		},
		{
			name:    "not json",
			data:    `status: STARTED`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateJobJSON([]byte(tt.data))
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateJobJSON() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
