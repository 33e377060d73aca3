package detector

import (
	"context"
	"net/url"
	"path"
	"strings"

	"github.com/robalyx/chatguard/internal/database/types"
	"github.com/robalyx/chatguard/internal/database/types/enum"
)

// AttachmentName is the configuration key of the attachment type detector.
const AttachmentName = "attachment"

// riskyExtensions are executable or script formats never expected in chat.
var riskyExtensions = map[string]struct{}{
	".exe": {}, ".scr": {}, ".msi": {}, ".bat": {}, ".cmd": {}, ".com": {},
	".ps1": {}, ".vbs": {}, ".js": {}, ".jar": {}, ".apk": {}, ".lnk": {},
	".hta": {}, ".dll": {}, ".iso": {},
}

// riskyContentTypes are MIME types reported for executables.
var riskyContentTypes = map[string]struct{}{
	"application/x-msdownload":                      {},
	"application/x-msdos-program":                   {},
	"application/vnd.microsoft.portable-executable": {},
	"application/java-archive":                      {},
	"application/vnd.android.package-archive":       {},
}

// AttachmentDetector flags executable attachments.
type AttachmentDetector struct{}

// NewAttachmentDetector creates an attachment type detector.
func NewAttachmentDetector() *AttachmentDetector {
	return &AttachmentDetector{}
}

// Name returns the configuration key of the detector.
func (d *AttachmentDetector) Name() string {
	return AttachmentName
}

// ContentKind returns the content the detector inspects.
func (d *AttachmentDetector) ContentKind() enum.ContentKind {
	return enum.ContentKindAttachment
}

// Check inspects the attachment's file name, URL path and content type.
func (d *AttachmentDetector) Check(_ context.Context, req *types.ContentCheckRequest) (*types.CheckResult, error) {
	a := req.Attachment
	if a == nil {
		return &types.CheckResult{Verdict: enum.VerdictClean, Reason: "no attachment"}, nil
	}

	contentType := strings.ToLower(strings.TrimSpace(strings.SplitN(a.ContentType, ";", 2)[0]))
	if _, ok := riskyContentTypes[contentType]; ok {
		return &types.CheckResult{
			Verdict:    enum.VerdictSpam,
			Confidence: 100,
			Reason:     "executable attachment type " + contentType,
		}, nil
	}

	for _, name := range []string{a.FileName, urlPath(a.URL)} {
		ext := strings.ToLower(path.Ext(name))
		if _, ok := riskyExtensions[ext]; ok {
			return &types.CheckResult{
				Verdict:    enum.VerdictSpam,
				Confidence: 100,
				Reason:     "executable attachment extension " + ext,
			}, nil
		}
	}

	return &types.CheckResult{
		Verdict: enum.VerdictClean,
		Reason:  "attachment type allowed",
	}, nil
}

// urlPath returns the path component of a URL.
func urlPath(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Path
}
