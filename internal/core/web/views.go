package web

import "github.com/seckatie/videfly/internal/core"

type pageView struct {
	URL             string
	Error           string
	ThumbnailURL    string // empty when no thumbnail is displayed
	ThumbnailWidth  int
	ThumbnailHeight int
	HasMetadata     bool
	Rows            []core.Row
	Downloading     bool
}

func newPageView(v core.View) pageView {
	pv := pageView{
		URL:             v.URL,
		Error:           v.Error,
		ThumbnailWidth:  core.ThumbnailWidth,
		ThumbnailHeight: core.ThumbnailHeight,
		HasMetadata:     v.HasMetadata,
		Rows:            v.Rows,
		Downloading:     v.Downloading,
	}
	if v.Thumbnail != "" {
		pv.ThumbnailURL = objectURL(v.Thumbnail)
	}
	return pv
}

func objectURL(ref core.Ref) string {
	return "/objects/" + string(ref)
}
