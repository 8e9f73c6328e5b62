// Package artifacts uploads the reports of a run to a GCS bucket.
package artifacts

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"sigs.k8s.io/prow/pkg/pod-utils/gcs"
)

// Options configure the upload. Uploads are disabled without a bucket.
type Options struct {
	bucket          string
	credentialsFile string
	prefix          string
}

func (o *Options) Bind(fs *flag.FlagSet) {
	fs.StringVar(&o.bucket, "gcs-bucket", "", "GCS bucket to upload reports to. Uploads are disabled when unset.")
	fs.StringVar(&o.credentialsFile, "gcs-credentials-file", "", "File holding the GCS service account credentials.")
	fs.StringVar(&o.prefix, "gcs-path-prefix", "cephci", "Path in the bucket reports are uploaded under.")
}

func (o *Options) Validate() error {
	if o.bucket != "" && o.credentialsFile == "" {
		return errors.New("--gcs-credentials-file is required with --gcs-bucket")
	}
	return nil
}

// Enabled determines if a bucket is configured.
func (o *Options) Enabled() bool {
	return o.bucket != ""
}

// Uploader returns an uploader for the configured bucket.
func (o *Options) Uploader(fs afero.Fs, logger *logrus.Entry) *GCSUploader {
	return NewGCSUploader(o.bucket, o.credentialsFile, o.prefix, fs, logger)
}

type uploadFunc func(ctx context.Context, bucket, gcsCredentialsFile, s3CredentialsFile string, compressFileTypes []string, uploadTargets map[string]gcs.UploadFunc) error

type GCSUploader struct {
	gcsBucket          string
	gcsCredentialsFile string
	prefix             string
	fs                 afero.Fs
	logger             *logrus.Entry
	upload             uploadFunc
}

func NewGCSUploader(gcsBucket, gcsCredentialsFile, prefix string, fs afero.Fs, logger *logrus.Entry) *GCSUploader {
	return &GCSUploader{
		gcsBucket:          gcsBucket,
		gcsCredentialsFile: gcsCredentialsFile,
		prefix:             prefix,
		fs:                 fs,
		logger:             logger,
		upload:             gcs.Upload,
	}
}

// Upload places the files under <prefix>/<runID>/ in the bucket and returns
// their gs:// URLs.
func (u *GCSUploader) Upload(ctx context.Context, runID string, files []string) ([]string, error) {
	if len(files) == 0 {
		return nil, nil
	}
	uploadTargets := map[string]gcs.UploadFunc{}
	var locations []string
	for _, file := range files {
		location := path.Join(u.prefix, runID, filepath.Base(file))
		if _, exists := uploadTargets[location]; exists {
			return nil, fmt.Errorf("files %v collide at %s", files, location)
		}
		if _, err := u.fs.Stat(file); err != nil {
			return nil, fmt.Errorf("couldn't stat %s: %w", file, err)
		}
		file := file
		uploadTargets[location] = gcs.DataUpload(func() (io.ReadCloser, error) {
			return u.fs.Open(file)
		})
		locations = append(locations, location)
	}
	if err := u.upload(ctx, u.gcsBucket, u.gcsCredentialsFile, "", []string{"*"}, uploadTargets); err != nil {
		return nil, fmt.Errorf("couldn't upload reports to GCS: %w", err)
	}
	sort.Strings(locations)
	var urls []string
	for _, location := range locations {
		urls = append(urls, fmt.Sprintf("gs://%s/%s", u.gcsBucket, location))
	}
	u.logger.WithField("bucket", u.gcsBucket).Infof("Uploaded %d reports.", len(urls))
	return urls, nil
}
