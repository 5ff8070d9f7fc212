package genicam

// GenICam SFNC node names used by the driver.
const (
	nodeIPAddress  = "GevDeviceIPAddress"
	nodeSubnetMask = "GevDeviceSubnetMask"
	nodeMACAddress = "GevDeviceMACAddress"
	nodeLinkSpeed  = "DeviceLinkSpeed"
	nodeModelName  = "DeviceModelName"
	nodeSerial     = "DeviceSerialNumber"

	nodeUserSetSelector  = "UserSetSelector"
	nodeUserSetLoad      = "UserSetLoad"
	nodeAcquisitionMode  = "AcquisitionMode"
	nodeBufferHandling   = "StreamBufferHandlingMode"
	nodePixelFormat      = "PixelFormat"
	nodeOffsetX          = "OffsetX"
	nodeOffsetY          = "OffsetY"
	nodeWidth            = "Width"
	nodeHeight           = "Height"
	nodeFrameRate        = "AcquisitionFrameRate"
	nodeFrameRateEnable  = "AcquisitionFrameRateEnable"
	nodeFrameRateAuto    = "AcquisitionFrameRateAuto"
	nodeFrameRateEnabled = "AcquisitionFrameRateEnabled"

	nodePacketSize         = "GevSCPSPacketSize"
	nodePacketDelay        = "GevSCPD"
	nodeReverseX           = "ReverseX"
	nodeResendEnable       = "StreamPacketResendEnable"
	nodeResendTimeout      = "StreamPacketResendTimeout"
	nodeResendMaxRequests  = "StreamPacketResendMaxRequests"
	nodeBalanceRatio       = "BalanceRatio"
	nodeBalanceRatioSelect = "BalanceRatioSelector"
	nodeBalanceWhiteAuto   = "BalanceWhiteAuto"
)

// Pixel format symbols.
const (
	pixelMono8      = "Mono8"
	pixelBayerRG8   = "BayerRG8"
	pixelRGB8Packed = "RGB8Packed"
)

const (
	autoOff        = "Off"
	autoContinuous = "Continuous"
)
