package jobs

import (
	"fmt"
	"math"
)

// Priority is a flat ordinal scale from the highest-urgency user-interactive
// work down to background housekeeping. Lower values run first. The four
// bands (user-interactive, user-initiated, user-visible-background,
// background) are anchored by the First.../Last... constants below so other
// code can compare against the band boundaries without hard-coding ordinals.
//
// Renamed from the original engine's rendering/scene/UI-specific member
// list (Present, Draw, OctreeCulling, WidgetDrawing, ...) to the domain
// this module actually covers: asset streaming, plugin/project loading,
// reflection registration, serialization, timers, and async disk I/O. The
// four-band structure and the dense ordinal spacing are unchanged.
type Priority uint8

const (
	EndSession Priority = iota
	SaveOnClose
	EndBatch
	StartBatch
	ConfigReload
	FlushPendingWrites
	DispatchCallback
	Dispatch
	FinishDispatchCallback
	RegistrySync

	UserAction
	QueuedDestruction
	AwaitBatchFinish
	PruneEmptyNodes
	AsyncTimers

	CoreResourceSync
	LoadPluginManifest
	LoadProjectSettings
	LoadAssetCatalog
	LoadAssetDependencies
	RegisterReflectedType
	DeserializeComponent
	LoadScriptObject
	LoadAssetIndex
	LoadAssetData
	LoadAssetMetadata
	CreateAssetHandle
	LoadSerializedBuffer
	LoadCompressedAsset
	DecompressAssetBuffer
	HighPriorityAsyncIO
	HighPriorityNetworkSync
	LowPriorityNetworkSync
	LowPriorityAsyncIO
	AssetCompilation
	ReloadChangedAsset

	ProjectChangeDetection
	FileChangeDetection
	HousekeepingSweep
	DeallocateResourcesMin
)

// DeallocateResourcesMax is not an enumerated member: deallocation jobs are
// assigned any ordinal in [DeallocateResourcesMin, DeallocateResourcesMax]
// via DeallocationPriorityForSize, same as the original's comment-free
// 32-wide sub-range.
const DeallocateResourcesMax = DeallocateResourcesMin + 32

const (
	FirstUserInteractive       = EndSession
	LastUserInteractive        = RegistrySync
	FirstUserInitiated         = UserAction
	LastUserInitiated          = AsyncTimers
	FirstUserVisibleBackground = CoreResourceSync
	LastUserVisibleBackground  = ReloadChangedAsset
	FirstBackground            = ProjectChangeDetection
	LastBackground             = DeallocateResourcesMax
)

var priorityNames = map[Priority]string{
	EndSession:              "EndSession",
	SaveOnClose:              "SaveOnClose",
	EndBatch:                 "EndBatch",
	StartBatch:               "StartBatch",
	ConfigReload:             "ConfigReload",
	FlushPendingWrites:       "FlushPendingWrites",
	DispatchCallback:         "DispatchCallback",
	Dispatch:                 "Dispatch",
	FinishDispatchCallback:   "FinishDispatchCallback",
	RegistrySync:             "RegistrySync",
	UserAction:               "UserAction",
	QueuedDestruction:        "QueuedDestruction",
	AwaitBatchFinish:         "AwaitBatchFinish",
	PruneEmptyNodes:          "PruneEmptyNodes",
	AsyncTimers:              "AsyncTimers",
	CoreResourceSync:         "CoreResourceSync",
	LoadPluginManifest:       "LoadPluginManifest",
	LoadProjectSettings:      "LoadProjectSettings",
	LoadAssetCatalog:         "LoadAssetCatalog",
	LoadAssetDependencies:    "LoadAssetDependencies",
	RegisterReflectedType:    "RegisterReflectedType",
	DeserializeComponent:     "DeserializeComponent",
	LoadScriptObject:         "LoadScriptObject",
	LoadAssetIndex:           "LoadAssetIndex",
	LoadAssetData:            "LoadAssetData",
	LoadAssetMetadata:        "LoadAssetMetadata",
	CreateAssetHandle:        "CreateAssetHandle",
	LoadSerializedBuffer:     "LoadSerializedBuffer",
	LoadCompressedAsset:      "LoadCompressedAsset",
	DecompressAssetBuffer:    "DecompressAssetBuffer",
	HighPriorityAsyncIO:      "HighPriorityAsyncIO",
	HighPriorityNetworkSync:  "HighPriorityNetworkSync",
	LowPriorityNetworkSync:   "LowPriorityNetworkSync",
	LowPriorityAsyncIO:       "LowPriorityAsyncIO",
	AssetCompilation:         "AssetCompilation",
	ReloadChangedAsset:       "ReloadChangedAsset",
	ProjectChangeDetection:   "ProjectChangeDetection",
	FileChangeDetection:      "FileChangeDetection",
	HousekeepingSweep:        "HousekeepingSweep",
	DeallocateResourcesMin:   "DeallocateResourcesMin",
}

func (p Priority) String() string {
	if name, ok := priorityNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Priority(%d)", uint8(p))
}

// Sub/Add/Scale mirror the original's operator-/operator+/operator*(float).
func (p Priority) Sub(other Priority) Priority { return Priority(int16(p) - int16(other)) }
func (p Priority) Add(other Priority) Priority { return Priority(int16(p) + int16(other)) }
func (p Priority) Scale(ratio float64) Priority {
	return Priority(math.Round(float64(p) * ratio))
}

// IsHighPriorityPerformanceJob/IsLowPriorityPerformanceJob/IsEfficiencyJob
// classify a priority into the runner capability class it needs (§4.G/§4.I).
func (p Priority) IsHighPriorityPerformanceJob() bool { return p < FirstUserVisibleBackground }
func (p Priority) IsLowPriorityPerformanceJob() bool {
	return p >= FirstUserVisibleBackground && p < FirstBackground
}
func (p Priority) IsEfficiencyJob() bool { return p >= FirstBackground }

// PriorityRange is a closed [Min, Max] ordinal span, used to map a 0..1
// ratio to a priority (GetJobPriorityRange) and back (GetClampedRatio).
type PriorityRange struct {
	Min, Max Priority
}

// ValueFromRatio maps ratio in [0,1] linearly onto [Min, Max].
func (r PriorityRange) ValueFromRatio(ratio float64) Priority {
	span := float64(r.Max) - float64(r.Min)
	return Priority(math.Round(float64(r.Min) + span*ratio))
}

// ClampedRatio is the inverse of ValueFromRatio, clamped to [0,1].
func (r PriorityRange) ClampedRatio(value Priority) float64 {
	span := float64(r.Max) - float64(r.Min)
	if span == 0 {
		return 0
	}
	ratio := (float64(value) - float64(r.Min)) / span
	if ratio < 0 {
		return 0
	}
	if ratio > 1 {
		return 1
	}
	return ratio
}

const (
	highestDeallocationPriorityMinimumSize int64 = 1024 * 1024
	lowestDeallocationPriorityMaximumSize  int64 = 8
)

// DeallocationPriorityForSize maps deallocationSize onto
// [DeallocateResourcesMin, DeallocateResourcesMax]: larger deallocations get
// a lower (more urgent) ordinal within the background band, mirroring
// JobPriority.h's GetDeallocationJobPriority (a feature the distilled spec's
// data model only gestures at with "a flat ordinal enum").
func DeallocationPriorityForSize(deallocationSize int64) Priority {
	ratio := clampedSizeRatio(deallocationSize, lowestDeallocationPriorityMaximumSize, highestDeallocationPriorityMinimumSize)
	deallocationRange := PriorityRange{Min: DeallocateResourcesMin, Max: DeallocateResourcesMax}
	return deallocationRange.ValueFromRatio(1 - ratio)
}

func clampedSizeRatio(value, lo, hi int64) float64 {
	if value <= lo {
		return 0
	}
	if value >= hi {
		return 1
	}
	return float64(value-lo) / float64(hi-lo)
}

// ThreadPriorityBand is the coarse OS-thread-priority class a Priority maps
// to; JobRunnerThread uses it to decide when to adjust the running thread's
// OS priority between jobs (§4.G).
type ThreadPriorityBand uint8

const (
	ThreadPriorityHigh ThreadPriorityBand = iota
	ThreadPriorityNormal
	ThreadPriorityBelowNormal
	ThreadPriorityLow
)

// ThreadPriorityBand returns the OS-thread-priority band for p plus a 0..1
// sub-priority ratio within that band, for finer-grained niceness hints.
func (p Priority) ThreadPriorityBand() (ThreadPriorityBand, float64) {
	switch {
	case p.IsHighPriorityPerformanceJob():
		r := PriorityRange{Min: FirstUserInteractive, Max: LastUserInitiated}
		return ThreadPriorityHigh, r.ClampedRatio(p)
	case p.IsLowPriorityPerformanceJob():
		r := PriorityRange{Min: FirstUserVisibleBackground, Max: LastUserVisibleBackground}
		return ThreadPriorityNormal, r.ClampedRatio(p)
	default:
		r := PriorityRange{Min: FirstBackground, Max: LastBackground}
		if p >= DeallocateResourcesMin {
			return ThreadPriorityLow, r.ClampedRatio(p)
		}
		return ThreadPriorityBelowNormal, r.ClampedRatio(p)
	}
}
