package audio

var WAVDataSize = wavDataSize
