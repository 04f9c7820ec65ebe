package output

import (
    "context"
    "fmt"
    "os"
    "path/filepath"

    awscfg "github.com/aws/aws-sdk-go-v2/config"
    "github.com/aws/aws-sdk-go-v2/feature/s3/manager"
    "github.com/aws/aws-sdk-go-v2/service/s3"
    "github.com/rs/zerolog/log"
)

// UploadResults pushes a run's artifact files to S3 under
// results/{runID}/. A failure on one file is logged and the rest are
// still attempted; the first error is returned.
func UploadResults(ctx context.Context, bucket, dir, runID string, files []string) error {
    if bucket == "" || len(files) == 0 {
        return nil
    }
    cfg, err := awscfg.LoadDefaultConfig(ctx)
    if err != nil {
        return fmt.Errorf("load aws config: %w", err)
    }
    up := manager.NewUploader(s3.NewFromConfig(cfg))

    var firstErr error
    for _, name := range files {
        f, err := os.Open(filepath.Join(dir, name))
        if err != nil {
            log.Warn().Err(err).Str("file", name).Msg("cannot open artifact for upload")
            if firstErr == nil { firstErr = err }
            continue
        }
        key := fmt.Sprintf("results/%s/%s", runID, name)
        _, err = up.Upload(ctx, &s3.PutObjectInput{Bucket: &bucket, Key: &key, Body: f})
        _ = f.Close()
        if err != nil {
            log.Warn().Err(err).Str("key", key).Msg("artifact upload failed")
            if firstErr == nil { firstErr = err }
            continue
        }
        log.Debug().Str("key", key).Msg("uploaded artifact")
    }
    return firstErr
}
