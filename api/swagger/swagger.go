package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "AcadForge Timetable API",
        "description": "Constraint-based timetable generation and publication for academic terms",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Login, refresh and session management"},
        {"name": "Terms", "description": "Academic term lifecycle"},
        {"name": "Departments", "description": "Department catalog"},
        {"name": "Faculty", "description": "Faculty roster, availability and workload"},
        {"name": "Classrooms", "description": "Classroom catalog"},
        {"name": "Subjects", "description": "Subject offerings per term"},
        {"name": "Schedules", "description": "Schedule entries: draft, publish, archive"},
        {"name": "Generator", "description": "Assignment search, proposals and conflict detection"},
        {"name": "Exports", "description": "Timetable and workload exports"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/schedules/generate": {
            "post": {
                "tags": ["Generator"],
                "summary": "Run the assignment search and hold the result as a proposal",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GenerateScheduleRequest"}}
                ],
                "responses": {
                    "200": {"description": "Proposal built", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Unknown subject reference"}
                }
            }
        },
        "/schedules/commit": {
            "post": {
                "tags": ["Generator"],
                "summary": "Persist a held proposal as schedule entries",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CommitProposalRequest"}}
                ],
                "responses": {
                    "201": {"description": "Entries persisted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Term changed since the proposal was generated"}
                }
            }
        },
        "/schedules/conflicts": {
            "post": {
                "tags": ["Generator"],
                "summary": "Validate a candidate assignment without persisting it",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/DetectConflictsRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedules": {
            "get": {
                "tags": ["Schedules"],
                "summary": "List schedule entries",
                "parameters": [
                    {"name": "semester", "in": "query", "type": "string"},
                    {"name": "academicYear", "in": "query", "type": "string"},
                    {"name": "subjectId", "in": "query", "type": "string"},
                    {"name": "facultyId", "in": "query", "type": "string"},
                    {"name": "classroomId", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Schedules"],
                "summary": "Create a manual draft entry",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateScheduleEntryRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Conflicting assignment"}
                }
            }
        },
        "/schedules/publish": {
            "post": {
                "tags": ["Schedules"],
                "summary": "Publish a batch of draft entries",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/PublishScheduleRequest"}}
                ],
                "responses": {
                    "200": {"description": "Batch published", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Batch contains conflicting entries"}
                }
            }
        },
        "/exports": {
            "post": {
                "tags": ["Exports"],
                "summary": "Enqueue a timetable or workload export",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ExportRequest"}}
                ],
                "responses": {
                    "202": {"description": "Job accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "SlotInput": {
            "type": "object",
            "required": ["day", "start", "end"],
            "properties": {
                "day": {"type": "string", "example": "MONDAY"},
                "start": {"type": "string", "example": "08:00"},
                "end": {"type": "string", "example": "09:30"}
            }
        },
        "GenerateScheduleRequest": {
            "type": "object",
            "required": ["semester", "academicYear", "subjectIds"],
            "properties": {
                "semester": {"type": "string"},
                "academicYear": {"type": "string"},
                "subjectIds": {"type": "array", "items": {"type": "string"}},
                "releasePublished": {"type": "boolean"},
                "options": {
                    "type": "object",
                    "properties": {
                        "maxTrials": {"type": "integer"},
                        "timeoutSeconds": {"type": "integer"}
                    }
                }
            }
        },
        "CommitProposalRequest": {
            "type": "object",
            "required": ["proposalId"],
            "properties": {
                "proposalId": {"type": "string"},
                "publish": {"type": "boolean"}
            }
        },
        "DetectConflictsRequest": {
            "type": "object",
            "required": ["semester", "academicYear", "subjectId", "facultyId", "classroomId", "slots"],
            "properties": {
                "semester": {"type": "string"},
                "academicYear": {"type": "string"},
                "entryId": {"type": "string"},
                "subjectId": {"type": "string"},
                "facultyId": {"type": "string"},
                "classroomId": {"type": "string"},
                "slots": {"type": "array", "items": {"$ref": "#/definitions/SlotInput"}}
            }
        },
        "CreateScheduleEntryRequest": {
            "type": "object",
            "required": ["subjectId", "facultyId", "classroomId", "slots", "semester", "academicYear"],
            "properties": {
                "subjectId": {"type": "string"},
                "facultyId": {"type": "string"},
                "classroomId": {"type": "string"},
                "slots": {"type": "array", "items": {"$ref": "#/definitions/SlotInput"}},
                "semester": {"type": "string"},
                "academicYear": {"type": "string"},
                "force": {"type": "boolean"}
            }
        },
        "PublishScheduleRequest": {
            "type": "object",
            "required": ["entryIds"],
            "properties": {
                "entryIds": {"type": "array", "items": {"type": "string"}}
            }
        },
        "ExportRequest": {
            "type": "object",
            "required": ["type", "semester", "academicYear", "format"],
            "properties": {
                "type": {"type": "string", "enum": ["term_timetable", "faculty_timetable", "classroom_timetable", "workload_summary"]},
                "semester": {"type": "string"},
                "academicYear": {"type": "string"},
                "facultyId": {"type": "string"},
                "classroomId": {"type": "string"},
                "format": {"type": "string", "enum": ["csv", "pdf"]}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
