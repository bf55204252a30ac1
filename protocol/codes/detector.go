package codes

import "github.com/iwtcode/tomographyAdapter/models"

// Коды функций плоскопанельного детектора.
const (
	DetGbIfGetDeviceCount        uint32 = 0
	DetGbIfGetDeviceList         uint32 = 1
	DetGbIfInit                  uint32 = 2
	DetGbIfGetDevice             uint32 = 3
	DetGbIfGetDeviceParams       uint32 = 4
	DetGbIfSetConnectionSettings uint32 = 5
	DetGbIfGetConnectionSettings uint32 = 6
	DetGbIfForceIP               uint32 = 7
	DetGbIfSetPacketDelay        uint32 = 8
	DetGbIfGetPacketDelay        uint32 = 9
	DetGbIfCheckNetworkSpeed     uint32 = 10
	DetGbIfGetDetectorProperties uint32 = 11
	DetGbIfGetFilterDrvState     uint32 = 12
	DetGetConfiguration          uint32 = 13
	DetGetHwHeaderInfo           uint32 = 14
	DetDefineDestBuffers         uint32 = 15
	DetAcquireOffsetImage        uint32 = 16
	DetCreatePixelMap            uint32 = 17
	DetAcquireImage              uint32 = 18
	DetSetCameraMode             uint32 = 19
	DetSetCameraGain             uint32 = 20
	DetSetCameraBinningMode      uint32 = 21
	DetGetCameraBinningMode      uint32 = 22
	DetSetCameraTriggerMode      uint32 = 23
	DetGetCameraTriggerMode      uint32 = 24
	DetSetCallbacksAndMessages   uint32 = 25
	DetGetReady                  uint32 = 26
	DetSetReady                  uint32 = 27
	DetIsAcquiringData           uint32 = 28
	DetGetAcqData                uint32 = 29
	DetGetActFrame               uint32 = 30
	DetClose                     uint32 = 31
	DetCloseAll                  uint32 = 32
	DetAbort                     uint32 = 33
	DetSetTimerSync              uint32 = 34
	DetSetFrameSyncMode          uint32 = 35
	DetEnumSensors               uint32 = 36
	DetGetNextSensor             uint32 = 37
	DetInit                      uint32 = 38
	DetGetErrorCode              uint32 = 39
	DetServerConnect             uint32 = 40
	DetEndFrameCallback          uint32 = 41
	DetEndAcqCallback            uint32 = 42
	DetSetCorrImage              uint32 = 43
)

// Статусы детектора (коды ошибок драйвера XIS).
const (
	DetOK                     uint32 = 0
	DetMemory                 uint32 = 1
	DetBoardInit              uint32 = 2
	DetNoCamera               uint32 = 3
	DetCorrBufferIncompatible uint32 = 4
	DetAcqAlreadyRunning      uint32 = 5
	DetTimeout                uint32 = 6
	DetInvalidAcqDesc         uint32 = 7
	DetAcqAbort               uint32 = 12
	DetAcquisition            uint32 = 13
	DetInvalidFuncCall        uint32 = 20
	DetAbortCurrFrame         uint32 = 21
	DetFuncNotImpl            uint32 = 40
	DetAcq                    uint32 = 43
	DetInvalidParam           uint32 = 45
	DetAborted                uint32 = 46
	DetWrongCameraMode        uint32 = 48
	DetNotInitialized         uint32 = 61
	DetInvalidHandle          uint32 = 73
	DetNotSupported           uint32 = 165
)

// Усиление панелей серии NOP.
const (
	GainP25 = 0 // 0.25 pF
	GainP5  = 1
	Gain1P  = 2
	Gain2P  = 3
	Gain4P  = 4
	Gain8P  = 5
)

// Режимы синхронизации кадров.
const (
	SyncSoftTrigger     = 1
	SyncInternalTimer   = 2
	SyncExternalTrigger = 3
	SyncFreeRunning     = 4
)

// TriggerFrames - режим запуска, при котором кадры идут по синхроимпульсу.
const TriggerFrames = 3

var detectorFunctions = map[uint32]string{
	DetGbIfGetDeviceCount:        "gb_if_get_device_count",
	DetGbIfGetDeviceList:         "gb_if_get_device_list",
	DetGbIfInit:                  "gb_if_init",
	DetGbIfGetDevice:             "gb_if_get_device",
	DetGbIfGetDeviceParams:       "gb_if_get_device_params",
	DetGbIfSetConnectionSettings: "gb_if_set_connection_settings",
	DetGbIfGetConnectionSettings: "gb_if_get_connection_settings",
	DetGbIfForceIP:               "gb_if_force_ip",
	DetGbIfSetPacketDelay:        "gb_if_set_packet_delay",
	DetGbIfGetPacketDelay:        "gb_if_get_packet_delay",
	DetGbIfCheckNetworkSpeed:     "gb_if_check_network_speed",
	DetGbIfGetDetectorProperties: "gb_if_get_detector_properties",
	DetGbIfGetFilterDrvState:     "gb_if_get_filter_drv_state",
	DetGetConfiguration:          "get_configuration",
	DetGetHwHeaderInfo:           "get_hw_header_info",
	DetDefineDestBuffers:         "define_dest_buffers",
	DetAcquireOffsetImage:        "acquire_offset_image",
	DetCreatePixelMap:            "create_pixel_map",
	DetAcquireImage:              "acquire_image",
	DetSetCameraMode:             "set_camera_mode",
	DetSetCameraGain:             "set_camera_gain",
	DetSetCameraBinningMode:      "set_camera_binning_mode",
	DetGetCameraBinningMode:      "get_camera_binning_mode",
	DetSetCameraTriggerMode:      "set_camera_trigger_mode",
	DetGetCameraTriggerMode:      "get_camera_trigger_mode",
	DetSetCallbacksAndMessages:   "set_callbacks_and_messages",
	DetGetReady:                  "get_ready",
	DetSetReady:                  "set_ready",
	DetIsAcquiringData:           "is_acquiring_data",
	DetGetAcqData:                "get_acq_data",
	DetGetActFrame:               "get_act_frame",
	DetClose:                     "close",
	DetCloseAll:                  "close_all",
	DetAbort:                     "abort",
	DetSetTimerSync:              "set_timer_sync",
	DetSetFrameSyncMode:          "set_frame_sync_mode",
	DetEnumSensors:               "enum_sensors",
	DetGetNextSensor:             "get_next_sensor",
	DetInit:                      "init",
	DetGetErrorCode:              "get_error_code",
	DetServerConnect:             "server_connect",
	DetEndFrameCallback:          "end_frame_callback",
	DetEndAcqCallback:            "end_acq_callback",
	DetSetCorrImage:              "set_corr_image",
}

var detectorStatuses = map[uint32]string{
	0:   "OK",
	1:   "MEMORY",
	2:   "BOARDINIT",
	3:   "NOCAMERA",
	4:   "CORRBUFFER_INCOMPATIBLE",
	5:   "ACQ_ALREADY_RUNNING",
	6:   "TIMEOUT",
	7:   "INVALIDACQDESC",
	8:   "VXDNOTFOUND",
	9:   "VXDNOTOPEN",
	10:  "VXDUNKNOWNERROR",
	11:  "VXDGETDMAADR",
	12:  "ACQABORT",
	13:  "ACQUISITION",
	14:  "VXD_REGISTER_IRQ",
	15:  "VXD_REGISTER_STATADR",
	16:  "GETOSVERSION",
	17:  "SETFRMSYNC",
	18:  "SETFRMSYNCMODE",
	19:  "SETTIMERSYNC",
	20:  "INVALID_FUNC_CALL",
	21:  "ABORTCURRFRAME",
	22:  "GETHWHEADERINFO",
	23:  "HWHEADER_INV",
	24:  "SETLINETRIG_MODE",
	25:  "WRITE_DATA",
	26:  "READ_DATA",
	27:  "SETBAUDRATE",
	28:  "NODESC_AVAILABLE",
	29:  "BUFFERSPACE_NOT_SUFF",
	30:  "SETCAMERAMODE",
	31:  "FRAME_INV",
	32:  "SLOW_SYSTEM",
	33:  "GET_NUM_BOARDS",
	34:  "HW_ALREADY_OPEN_BY_ANOTHER_PROCESS",
	35:  "CREATE_MEMORYMAPPING",
	36:  "VXD_REGISTER_DMA_ADDRESS",
	37:  "VXD_REGISTER_STAT_ADDR",
	38:  "VXD_UNMASK_IRQ",
	39:  "LOADDRIVER",
	40:  "FUNC_NOTIMPL",
	41:  "MEMORY_MAPPING",
	42:  "CREATE_MUTEX",
	43:  "ACQ",
	44:  "DESC_NOT_LOCAL",
	45:  "INVALID_PARAM",
	46:  "ABORT",
	47:  "WRONGBOARDSELECT",
	48:  "WRONG_CAMERA_MODE",
	49:  "AVERAGED_LOST",
	50:  "BAD_SORTING_PARAM",
	51:  "UNKNOWN_IP_MAC_NAME",
	52:  "NO_BOARD_IN_SUBNET",
	53:  "UNABLE_TO_OPEN_BOARD",
	54:  "UNABLE_TO_CLOSE_BOARD",
	55:  "UNABLE_TO_ACCESS_DETECTOR_FLASH",
	56:  "HEADER_TIMEOUT",
	57:  "NO_FPGA_ACK",
	58:  "NR_OF_BOARDS_CHANGED",
	59:  "SETEXAMFLAG",
	60:  "ILLEGAL_INDEX",
	61:  "NOT_INITIALIZED",
	62:  "NOT_DISCOVERED",
	63:  "ONBOARDAVGFAILED",
	64:  "GET_ONBOARD_OFFSET",
	65:  "CURL",
	66:  "ENABLE_ONBOARD_OFFSET",
	67:  "ENABLE_ONBOARD_MEAN",
	68:  "ENABLE_ONBOARD_GAINOFFSET",
	69:  "ENABLE_ONBOARD_PREVIEW",
	70:  "SET_ONBOARD_BINNING",
	71:  "LOAD_COORECTIONIMAGETOBUFFER",
	72:  "INVALIDBUFFERNR",
	73:  "INVALID_HANDLE",
	74:  "ALREADY_EXISTS",
	75:  "DOES_NOT_EXIST",
	76:  "OPEN_FILE",
	77:  "INVALID_FILENAME",
	78:  "SETDISCOVERYTIMEOUT",
	104: "SET_IMAGE_TAG",
	105: "SET_PROC_SCRIPT",
	106: "SET_IMAGE_TAG_LENGTH",
	107: "RETRIEVE_ENHANCED_HEADER",
	108: "ENABLE_INTERRUPTS",
	115: "EMI_NOT_SET",
	117: "SET_IDLE_TIMEOUT",
	118: "SET_CHARGE_MODE",
	133: "ACKNOWLEDGE_IMAGE",
	139: "GET_CHARGE_MODE",
	143: "MISSING_VERSION_INFORMATION",
	146: "HW_BOARD_CHANNEL_ALREADY_USED",
	153: "SET_PACKET_DELAY",
	154: "GET_AVAILABLE_SYSTEMS",
	160: "SETHEADERSIZE",
	161: "SETREGISTERTIMEOUT",
	164: "WSA",
	165: "NOT_SUPPORTED",
	166: "TRANSMISSION_MODE",
	167: "CONFLICT",
	168: "WLAN_RESTART",
	169: "SET_EVENT_CALLBACK",
	172: "RESET_ZYNQ",
	176: "INIT_DET_OPTIONS",
}

// Detector - таблица кодов плоскопанельного детектора.
var Detector = newFamily(models.Detector, DetOK, DetServerConnect, DetFuncNotImpl, DetInvalidParam, detectorFunctions, detectorStatuses)
