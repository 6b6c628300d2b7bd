package format

import (
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/LdDl/mht-go/mht"
)

// WriteTrackFile writes the track output file of spec section 6: a
// commented parameter-echo header, the track/false-alarm counts, one
// block per track (id, length, then one line per element), and one line
// per false alarm — the same layout as trackCorners.c's
// writeCornerTrackFile.
func WriteTrackFile(w io.Writer, p *mht.Params, tracks []*mht.Track, falarms []mht.FalseAlarm) error {
	if err := writeParamHeader(w, p); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "%d\n%d\n", len(tracks), len(falarms)); err != nil {
		return errors.Wrap(err, "mht/format: writing track/falarm counts")
	}

	for id, t := range tracks {
		if _, err := fmt.Fprintf(w, "%d %d\n", id, len(t.Elements)); err != nil {
			return errors.Wrap(err, "mht/format: writing track header")
		}
		for _, el := range t.Elements {
			if _, err := fmt.Fprintf(w, "%c %g %g %g %g %g %d %d %s %d\n",
				el.Code, el.ReportX, el.ReportY, el.StateX, el.StateY,
				el.LogLikelihood, el.Time, el.FrameNo, el.ModelType, el.CornerID); err != nil {
				return errors.Wrap(err, "mht/format: writing track element")
			}
		}
	}

	for _, fa := range falarms {
		if _, err := fmt.Fprintf(w, "%g %g %d %d\n", fa.ReportX, fa.ReportY, fa.FrameNo, fa.CornerID); err != nil {
			return errors.Wrap(err, "mht/format: writing false alarm")
		}
	}
	return nil
}

// writeParamHeader reproduces the reference writer's commented parameter
// dump, including its literal bug of printing maxDistance1 for all three
// Mahalanobis-distance labels (the original source repeats
// param.maxDistance1 on every "Max Mahalinobus Dist" line rather than
// param.maxDistance2/3), then appends one corrected, machine-parseable
// line so a reader can recover the real maxDistance2/maxDistance3 values
// instead of losing them to the echoed bug.
func writeParamHeader(w io.Writer, p *mht.Params) error {
	_, err := fmt.Fprintf(w,
		"#INFORMATION REGARDING THIS CORNER TRACKER\n"+
			"#___________________________________________\n"+
			"#\n#\n"+
			"#    Parameters: \n"+
			"#\n"+
			"#         PositionVarianceX:  %g\n"+
			"#\n"+
			"#         PositionVarianceY:  %g\n"+
			"#\n"+
			"#         GradientVariance:  %g\n"+
			"#\n"+
			"#         intensityVariance:  %g\n"+
			"#\n"+
			"#         ProcessVariance:  %g\n"+
			"#\n"+
			"#         StateVariance:  %g\n"+
			"#\n"+
			"#         Prob. Of Detection:  %g\n"+
			"#\n"+
			"#         Prob Of Track Ending:  %g\n"+
			"#\n"+
			"#         Mean New Tracks:  %g\n"+
			"#\n"+
			"#         Mean False Alarms:  %g\n"+
			"#\n"+
			"#         Max Global Hypo:  %d\n"+
			"#\n"+
			"#         Max Depth:  %d\n"+
			"#\n"+
			"#         MinGHypoRatio:  %g\n"+
			"#\n"+
			"#         intensity Threshold:  %g\n"+
			"#\n"+
			"#         Max Mahalinobus Dist1:  %g\n"+
			"#\n"+
			"#         Max Mahalinobus Dist2:  %g\n"+
			"#\n"+
			"#         Max Mahalinobus Dist3:  %g\n"+
			"#\n"+
			"#         Corrected Max Mahalinobus Dist2, Dist3:  %g %g\n"+
			"#\n",
		p.PositionVarianceX, p.PositionVarianceY, p.GradientVariance, p.IntensityVariance,
		p.ProcessVariance, p.StateVariance, p.ProbDetect, p.ProbEnd, p.MeanNew, p.MeanFalarms,
		p.MaxGHypos, p.MaxDepth, p.MinGHypoRatio, p.IntensityThreshold,
		p.MaxDistance1, p.MaxDistance1, p.MaxDistance1,
		p.MaxDistance2, p.MaxDistance3,
	)
	return errors.Wrap(err, "mht/format: writing parameter header")
}
