package service

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/acadforge/timetable-api/internal/engine"
	"github.com/acadforge/timetable-api/internal/models"
	"github.com/acadforge/timetable-api/pkg/export"
	"github.com/acadforge/timetable-api/pkg/storage"
)

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ExportFormat
	ExpiresAt    time.Time
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportService renders timetable and workload datasets and persists the
// resulting files.
type ExportService struct {
	faculty    snapshotFacultyReader
	classrooms snapshotClassroomReader
	subjects   snapshotSubjectReader
	entries    snapshotEntryReader
	storage    fileStorage
	csv        csvRenderer
	pdf        pdfRenderer
	signer     *storage.SignedURLSigner
	logger     *zap.Logger
	cfg        ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(
	faculty snapshotFacultyReader,
	classrooms snapshotClassroomReader,
	subjects snapshotSubjectReader,
	entries snapshotEntryReader,
	store fileStorage,
	signer *storage.SignedURLSigner,
	cfg ExportConfig,
	logger *zap.Logger,
	csv csvRenderer,
	pdf pdfRenderer,
) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		faculty:    faculty,
		classrooms: classrooms,
		subjects:   subjects,
		entries:    entries,
		storage:    store,
		csv:        csv,
		pdf:        pdf,
		signer:     signer,
		logger:     logger,
		cfg:        cfg,
	}
}

// Generate builds the dataset for a job and stores the rendered export.
func (s *ExportService) Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	dataset, title, err := s.buildDataset(ctx, job)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Params.Format {
	case models.ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	filename := s.buildFilename(job)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	signedURL := strings.TrimRight(s.cfg.APIPrefix, "/")
	if signedURL == "" {
		signedURL = "/api/v1"
	}
	signedURL = fmt.Sprintf("%s/exports/download/%s", signedURL, token)

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          signedURL,
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL
// when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.ExportJob) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	termPart := sanitizeFilename(job.Params.Semester + "_" + job.Params.AcademicYear)
	return fmt.Sprintf("%s_%s_%s.%s", strings.ToLower(string(job.Type)), termPart, timestamp, job.Params.Format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ExportJob) (export.Dataset, string, error) {
	switch job.Type {
	case models.ExportTypeTermTimetable:
		return s.buildTimetableDataset(ctx, job.Params, "", "")
	case models.ExportTypeFacultyTimetable:
		return s.buildTimetableDataset(ctx, job.Params, deref(job.Params.FacultyID), "")
	case models.ExportTypeClassroomTimetable:
		return s.buildTimetableDataset(ctx, job.Params, "", deref(job.Params.ClassroomID))
	case models.ExportTypeWorkloadSummary:
		return s.buildWorkloadDataset(ctx, job.Params)
	default:
		return export.Dataset{}, "", fmt.Errorf("unsupported export type %s", job.Type)
	}
}

// timetableRow is one meeting of one published entry, flattened for export.
type timetableRow struct {
	slot  engine.TimeSlot
	cells map[string]string
}

func (s *ExportService) buildTimetableDataset(ctx context.Context, params models.ExportJobParams, facultyID, classroomID string) (export.Dataset, string, error) {
	entries, err := s.entries.ListByTerm(ctx, params.Semester, params.AcademicYear)
	if err != nil {
		return export.Dataset{}, "", err
	}
	facultyNames, err := s.facultyNames(ctx)
	if err != nil {
		return export.Dataset{}, "", err
	}
	roomCodes, err := s.roomCodes(ctx)
	if err != nil {
		return export.Dataset{}, "", err
	}
	subjectCodes, err := s.subjectCodes(ctx, params.Semester, params.AcademicYear)
	if err != nil {
		return export.Dataset{}, "", err
	}

	var rows []timetableRow
	for _, entry := range entries {
		if entry.Status != models.EntryStatusPublished {
			continue
		}
		if facultyID != "" && entry.FacultyID != facultyID {
			continue
		}
		if classroomID != "" && entry.ClassroomID != classroomID {
			continue
		}
		slots, convErr := slotsJSONToEngine(entry.Slots)
		if convErr != nil {
			return export.Dataset{}, "", fmt.Errorf("entry %s: %w", entry.ID, convErr)
		}
		for _, slot := range slots {
			rows = append(rows, timetableRow{
				slot: slot,
				cells: map[string]string{
					"Day":     slot.Day.String(),
					"Time":    fmt.Sprintf("%s-%s", slot.Start, slot.End),
					"Subject": labelOr(subjectCodes[entry.SubjectID], entry.SubjectID),
					"Faculty": labelOr(facultyNames[entry.FacultyID], entry.FacultyID),
					"Room":    labelOr(roomCodes[entry.ClassroomID], entry.ClassroomID),
				},
			})
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].slot.Day != rows[j].slot.Day {
			return rows[i].slot.Day < rows[j].slot.Day
		}
		if rows[i].slot.Start != rows[j].slot.Start {
			return rows[i].slot.Start < rows[j].slot.Start
		}
		return rows[i].cells["Subject"] < rows[j].cells["Subject"]
	})

	dataRows := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		dataRows = append(dataRows, row.cells)
	}
	dataset := export.Dataset{
		Headers: []string{"Day", "Time", "Subject", "Faculty", "Room"},
		Rows:    dataRows,
	}

	title := fmt.Sprintf("Timetable %s %s", params.Semester, params.AcademicYear)
	switch {
	case facultyID != "":
		title = fmt.Sprintf("%s %s", labelOr(facultyNames[facultyID], facultyID), title)
	case classroomID != "":
		title = fmt.Sprintf("%s %s", labelOr(roomCodes[classroomID], classroomID), title)
	}
	return dataset, title, nil
}

func (s *ExportService) buildWorkloadDataset(ctx context.Context, params models.ExportJobParams) (export.Dataset, string, error) {
	records, err := s.entries.ListByTerm(ctx, params.Semester, params.AcademicYear)
	if err != nil {
		return export.Dataset{}, "", err
	}
	faculty, err := s.faculty.ListAll(ctx)
	if err != nil {
		return export.Dataset{}, "", err
	}

	entries := make([]engine.Entry, 0, len(records))
	for _, record := range records {
		entry, convErr := entryToEngine(record)
		if convErr != nil {
			return export.Dataset{}, "", fmt.Errorf("entry %s: %w", record.ID, convErr)
		}
		entries = append(entries, entry)
	}

	sort.Slice(faculty, func(i, j int) bool { return faculty[i].FullName < faculty[j].FullName })
	dataRows := make([]map[string]string, 0, len(faculty))
	for _, fac := range faculty {
		load := engine.LoadFor(fac.ID, entries)
		preps := engine.PreparationsFor(fac.ID, entries)
		flag := ""
		if load < fac.MinLoad {
			flag = "UNDER MIN"
		}
		dataRows = append(dataRows, map[string]string{
			"Faculty":      fac.FullName,
			"Load (hrs)":   fmt.Sprintf("%.2f", load),
			"Min":          fmt.Sprintf("%.1f", fac.MinLoad),
			"Max":          fmt.Sprintf("%.1f", fac.MaxLoad),
			"Preparations": fmt.Sprintf("%d", preps),
			"Flag":         flag,
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Faculty", "Load (hrs)", "Min", "Max", "Preparations", "Flag"},
		Rows:    dataRows,
	}
	title := fmt.Sprintf("Faculty Workload %s %s", params.Semester, params.AcademicYear)
	return dataset, title, nil
}

func (s *ExportService) facultyNames(ctx context.Context) (map[string]string, error) {
	faculty, err := s.faculty.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(faculty))
	for _, fac := range faculty {
		names[fac.ID] = fac.FullName
	}
	return names, nil
}

func (s *ExportService) roomCodes(ctx context.Context) (map[string]string, error) {
	rooms, err := s.classrooms.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	codes := make(map[string]string, len(rooms))
	for _, room := range rooms {
		codes[room.ID] = room.Code
	}
	return codes, nil
}

func (s *ExportService) subjectCodes(ctx context.Context, semester, academicYear string) (map[string]string, error) {
	subjects, err := s.subjects.ListByTerm(ctx, semester, academicYear)
	if err != nil {
		return nil, err
	}
	codes := make(map[string]string, len(subjects))
	for _, sub := range subjects {
		codes[sub.ID] = sub.Code
	}
	return codes, nil
}

func labelOr(label, fallback string) string {
	if label == "" {
		return fallback
	}
	return label
}

func deref(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
