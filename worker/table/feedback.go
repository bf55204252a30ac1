package table

import (
	"context"
	"time"

	"github.com/iwtcode/tomographyAdapter/protocol/codes"
)

// feedback периодически отправляет менеджеру положение и состояние оси.
// Останавливается при отмене ctx или ошибке отправки.
func (w *Worker) feedback(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("Feedback polling stopped")
			return
		case <-ticker.C:
			for _, code := range []uint32{codes.TblGetProgramPositionFeedback, codes.TblGetAxisStatus} {
				if _, err := w.rt.Invoke(code); err != nil {
					if ctx.Err() == nil {
						w.logger.Errorf("Error in feedback thread: %v", err)
					}
					return
				}
			}
		}
	}
}
