package service

import "readypath/internal/model"

// Broadcaster pushes live session events to an open UI connection.
// Implemented by the WebSocket hub; everything it carries is cosmetic and
// never gates correctness.
type Broadcaster interface {
	BroadcastLoadingProgress(userID string, kind model.AssessmentKind, percent int)
	BroadcastTurn(userID string, kind model.AssessmentKind, turn *model.Turn)
	BroadcastComplete(userID string, kind model.AssessmentKind, overallScore float64)
}
