package gcsuploader

import "testing"

func TestParseGCSURI(t *testing.T) {
	tests := []struct {
		uri        string
		wantBucket string
		wantObject string
		wantErr    bool
	}{
		{"gs://bucket/rpm_data.tsv", "bucket", "rpm_data.tsv", false},
		{"gs://bucket/extracts/2022/sfdc_data.tsv", "bucket", "extracts/2022/sfdc_data.tsv", false},
		{"gs://bucket", "", "", true},
		{"gs://bucket/", "", "", true},
		{"s3://bucket/file.tsv", "", "", true},
		{"rpm_data.tsv", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, object, err := ParseGCSURI(tt.uri)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseGCSURI(%q) error = %v, wantErr %v", tt.uri, err, tt.wantErr)
			}
			if bucket != tt.wantBucket || object != tt.wantObject {
				t.Errorf("ParseGCSURI(%q) = (%q, %q), want (%q, %q)", tt.uri, bucket, object, tt.wantBucket, tt.wantObject)
			}
		})
	}
}

func TestObjectName(t *testing.T) {
	tests := []struct {
		prefix string
		want   string
	}{
		{"", "2022-09-01 10_00_00.csv"},
		{"recon", "recon/2022-09-01 10_00_00.csv"},
		{"/recon/runs/", "recon/runs/2022-09-01 10_00_00.csv"},
	}

	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			if got := ObjectName(tt.prefix, "2022-09-01 10_00_00.csv"); got != tt.want {
				t.Errorf("ObjectName(%q) = %q, want %q", tt.prefix, got, tt.want)
			}
		})
	}
}

func TestObjectURI(t *testing.T) {
	if got := ObjectURI("bucket", "recon/out.csv"); got != "gs://bucket/recon/out.csv" {
		t.Errorf("ObjectURI() = %q", got)
	}
}
